// Package worker defines the stateful representation of a registered
// processing process within the buildqueue durable store.
//
// A worker is created by the worker runtime (package runtime) on
// startup, mutated on every heartbeat and status change, and eventually
// transitioned to Dead by the pool manager when its heartbeat goes
// stale. Package worker itself contains no behavior — only the data
// shape shared between the store, the pool manager, and the worker
// runtime.
package worker
