// Package pool implements the pool manager: the supervision loop that
// keeps each job type's worker pool at its configured size.
//
// On a fixed interval the manager marks workers with a stale heartbeat
// as Hung, reaps those stale past the dead threshold (which also resets
// any job they still owned back to Pending), force-kills the matching
// OS-level process or container, and launches a replacement. The
// initial pool is launched concurrently across workers via
// golang.org/x/sync/errgroup; the reap-and-relaunch pass, replacements
// included, runs serially on the manager's own timer goroutine.
package pool
