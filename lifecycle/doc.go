// Package lifecycle composes the pool manager and the backend into the
// two deployment shapes described by the system: one-shot, where a
// fixed batch of jobs is submitted and the whole pool is torn down once
// every job reaches a terminal state, and persistent, where the pool
// runs indefinitely and jobs are submitted over its lifetime by
// whatever else is running in the process.
package lifecycle
