package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// DefaultNamespace is the containerd namespace every buildqueue
// container is created under.
const DefaultNamespace = "buildqueue"

// DefaultSocketPath is the default containerd socket path.
const DefaultSocketPath = "/run/containerd/containerd.sock"

type containerTask struct {
	container containerd.Container
	task      containerd.Task
}

// Container launches worker processes as containerd tasks. Each job
// type's worker image gets the course source tree mounted read-only at
// SourceMount, the workspace mounted read-write at WorkspaceMount, and
// the shared store file bind-mounted at StoreMount.
type Container struct {
	client    *containerd.Client
	namespace string
	log       *slog.Logger

	mu     sync.Mutex
	active map[string]*containerTask
}

// NewContainer connects to the containerd socket at socketPath (or
// DefaultSocketPath if empty).
func NewContainer(socketPath string, log *slog.Logger) (*Container, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if log == nil {
		log = slog.Default()
	}
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("executor: container: connect containerd: %w", err)
	}
	return &Container{
		client:    client,
		namespace: DefaultNamespace,
		log:       log,
		active:    make(map[string]*containerTask),
	}, nil
}

// Close releases the containerd client connection.
func (c *Container) Close() error {
	return c.client.Close()
}

func (c *Container) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, c.namespace)
}

// Launch pulls spec.Image if needed, creates a container with the
// source/workspace/store mounts, and starts spec.Command as its task.
func (c *Container) Launch(ctx context.Context, spec Spec) (*Handle, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("executor: container: empty image")
	}
	ctx = c.ctx(ctx)

	image, err := c.client.GetImage(ctx, spec.Image)
	if err != nil {
		image, err = c.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return nil, fmt.Errorf("executor: container: pull %s: %w", spec.Image, err)
		}
	}

	mounts := []specs.Mount{
		{Source: spec.SourceDir, Destination: SourceMount, Type: "bind", Options: []string{"rbind", "ro"}},
		{Source: spec.WorkspaceDir, Destination: WorkspaceMount, Type: "bind", Options: []string{"rbind", "rw"}},
		{Source: spec.StorePath, Destination: StoreMount, Type: "bind", Options: []string{"rbind", "rw"}},
	}

	id := uuid.NewString()

	// HOST_DATA_DIR/HOST_WORKSPACE carry the host paths the job's
	// InputFile/OutputFile are actually rooted under, not this
	// container's own mount points — the worker needs both the host
	// root and its own mount point to convert a job path with
	// ToContainerPath/FromContainerPath. WORKER_CONTAINER_ID makes the
	// worker register under this handle's ID.
	env := append([]string{
		"HOST_DATA_DIR=" + spec.SourceDir,
		"HOST_WORKSPACE=" + spec.WorkspaceDir,
		"DB_PATH=" + StoreMount,
		"WORKER_TYPE=" + spec.WorkerType.String(),
		"WORKER_CONTAINER_ID=" + id,
		"BUILDQUEUE_MOUNT=container",
	}, spec.Env...)

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(env),
		oci.WithMounts(mounts),
	}
	if len(spec.Command) > 0 {
		opts = append(opts, oci.WithProcessArgs(spec.Command...))
	}

	ctrdContainer, err := c.client.NewContainer(
		ctx,
		id,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(id+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return nil, fmt.Errorf("executor: container: create: %w", err)
	}

	task, err := ctrdContainer.NewTask(ctx, cio.NullIO)
	if err != nil {
		_ = ctrdContainer.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("executor: container: new task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		_, _ = task.Delete(ctx)
		_ = ctrdContainer.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fmt.Errorf("executor: container: start task: %w", err)
	}

	c.mu.Lock()
	c.active[id] = &containerTask{container: ctrdContainer, task: task}
	c.mu.Unlock()

	return &Handle{ID: id}, nil
}

func (c *Container) lookup(h *Handle) *containerTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[h.ID]
}

// IsRunning reports whether the task is in the containerd Running
// state.
func (c *Container) IsRunning(ctx context.Context, h *Handle) bool {
	ct := c.lookup(h)
	if ct == nil {
		return false
	}
	status, err := ct.task.Status(c.ctx(ctx))
	if err != nil {
		return false
	}
	return status.Status == containerd.Running
}

// Stop sends SIGTERM to the task and waits up to timeout for it to
// exit, force-killing it if the deadline passes. The task and container
// are deleted either way.
func (c *Container) Stop(ctx context.Context, h *Handle, timeout time.Duration) error {
	ct := c.lookup(h)
	if ct == nil {
		return nil
	}
	ctx = c.ctx(ctx)

	statusC, err := ct.task.Wait(ctx)
	if err != nil {
		return fmt.Errorf("executor: container: wait %s: %w", h.ID, err)
	}
	if err := ct.task.Kill(ctx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("executor: container: sigterm %s: %w", h.ID, err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := ct.task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("executor: container: sigkill %s: %w", h.ID, err)
		}
		<-statusC
	}
	return c.cleanup(ctx, h.ID, ct)
}

// ForceKill sends SIGKILL directly and deletes the task and container.
func (c *Container) ForceKill(ctx context.Context, h *Handle) error {
	ct := c.lookup(h)
	if ct == nil {
		return nil
	}
	ctx = c.ctx(ctx)
	_ = ct.task.Kill(ctx, syscall.SIGKILL)
	return c.cleanup(ctx, h.ID, ct)
}

func (c *Container) cleanup(ctx context.Context, id string, ct *containerTask) error {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()

	if _, err := ct.task.Delete(ctx); err != nil {
		c.log.Warn("delete task failed", "id", id, "err", err)
	}
	if err := ct.container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("executor: container: delete %s: %w", id, err)
	}
	return nil
}
