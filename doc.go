// Package buildqueue holds the small set of types shared across every
// subsystem of the job orchestration core: the durable store, the worker
// runtime, the executor strategies, the pool manager, the backend facade
// and the lifecycle manager. Each of those lives in its own subpackage;
// this package only carries the retry policy (BackoffConfig) that the
// worker runtime uses for registration.
package buildqueue
