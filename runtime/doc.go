// Package runtime implements the worker runtime: the polling loop that
// runs inside every worker process, whatever launched it (the direct
// executor's os/exec child or the container executor's containerd task).
//
// A Runtime registers itself with the durable store, then repeatedly
// claims a job of its configured type, dispatches it to a Processor,
// reports the outcome, and heartbeats while idle. It owns no business
// logic of its own — the Processor supplied at construction is what
// actually converts a notebook, a PlantUML source, or a Draw.io diagram.
package runtime
