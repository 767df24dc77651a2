// Package executor launches worker processes and supervises their
// lifetime from the orchestrator side. Two strategies are provided:
// Direct, which forks a worker binary with os/exec on the host, and
// Container, which launches it as a containerd task with the source
// tree mounted read-only and the workspace mounted read-write.
//
// Both strategies produce the same Handle shape so the pool manager can
// treat them identically: launch, check liveness, request graceful
// shutdown, and force-kill.
package executor
