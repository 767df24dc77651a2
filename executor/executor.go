package executor

import (
	"context"
	"time"

	"github.com/coursekit/buildqueue/job"
)

// Spec describes one worker process to launch.
type Spec struct {
	WorkerType job.Type

	// Command is the argv of the worker binary. For the container
	// executor this is the process run inside the image; for the
	// direct executor it is exec'd directly.
	Command []string

	// Image is the containerd image reference. Ignored by the direct
	// executor.
	Image string

	// SourceDir is the host directory containing course material
	// inputs, mounted read-only.
	SourceDir string

	// WorkspaceDir is the host directory workers write outputs and
	// intermediate files into, mounted read-write.
	WorkspaceDir string

	// StorePath is the host path to the shared sqlite database file.
	StorePath string

	// Env is additional environment passed to the worker process, in
	// "KEY=VALUE" form.
	Env []string
}

// Handle identifies a launched worker process for later Stop/ForceKill/
// IsRunning calls. Its zero value is not valid; only use a
// Handle returned by Launch.
type Handle struct {
	// ID is an opaque identifier: a containerd container id for the
	// Container executor, or "direct:<pid>" for the Direct executor.
	// It is what gets persisted into worker.Worker.ContainerID.
	ID string
}

// Executor launches and supervises worker processes.
type Executor interface {
	// Launch starts a new worker process per spec and returns a handle
	// to it. The process is expected to register itself with the
	// durable store on its own; Launch does not wait for that.
	Launch(ctx context.Context, spec Spec) (*Handle, error)

	// IsRunning reports whether the process behind h is still alive.
	IsRunning(ctx context.Context, h *Handle) bool

	// Stop requests graceful shutdown (SIGTERM for Direct, a
	// containerd task Kill with SIGTERM for Container) and waits up to
	// timeout for the process to exit, force-killing it once timeout
	// elapses.
	Stop(ctx context.Context, h *Handle, timeout time.Duration) error

	// ForceKill terminates the process immediately (SIGKILL) and
	// releases any resources associated with the handle.
	ForceKill(ctx context.Context, h *Handle) error
}
