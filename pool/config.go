package pool

import (
	"time"

	"github.com/coursekit/buildqueue/job"
)

// StalenessConfig defines how long a worker's heartbeat may go unseen
// before it is considered hung, and then dead. Both the pool manager's
// own supervision loop and the backend's reconciliation pass apply the
// same thresholds, so a worker is never judged dead by one and merely
// hung by the other.
type StalenessConfig struct {
	HungThreshold time.Duration
	DeadThreshold time.Duration
}

// WorkerPoolConfig describes the desired steady-state size and launch
// parameters of one job type's worker pool.
type WorkerPoolConfig struct {
	Type    job.Type
	Count   int
	Image   string   // container executor image ref; ignored by Direct
	Command []string // worker process argv
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Pools               []WorkerPoolConfig
	Staleness           StalenessConfig
	SupervisionInterval time.Duration
	ShutdownTimeout     time.Duration

	SourceDir    string
	WorkspaceDir string
	StorePath    string
}
