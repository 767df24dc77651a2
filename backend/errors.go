package backend

import "errors"

// ErrTimeout is returned by WaitForCompletion when the active id set
// does not fully drain within the configured overall timeout.
var ErrTimeout = errors.New("backend: wait for completion timed out")

// ErrJobsFailed is returned by WaitForCompletion, wrapped with the
// first terminal failure and a summary count, once every id in the
// active set has reached a terminal status and at least one of them
// failed. It is only ever returned alongside a fully populated
// BatchResult — draining continues for every id regardless of earlier
// failures.
var ErrJobsFailed = errors.New("backend: one or more jobs failed")
