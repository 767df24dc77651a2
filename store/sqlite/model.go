package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/worker"
)

type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID int64 `bun:"id,pk,autoincrement"`

	Type     job.Type   `bun:"job_type,notnull"`
	Status   job.Status `bun:"status,notnull,default:0"`
	Priority int        `bun:"priority,notnull,default:0"`

	InputFile   string `bun:"input_file,notnull"`
	OutputFile  string `bun:"output_file,notnull"`
	ContentHash string `bun:"content_hash,notnull"`

	Payload job.Payload `bun:"payload,type:jsonb"`

	Attempts    uint32 `bun:"attempts,notnull,default:0"`
	MaxAttempts uint32 `bun:"max_attempts,notnull,default:1"`

	WorkerID *int64 `bun:"worker_id,nullzero"`

	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`

	Error string `bun:"error,nullzero"`
}

func (jm *jobModel) toJob() *job.Job {
	return &job.Job{
		ID:          jm.ID,
		Type:        jm.Type,
		Status:      jm.Status,
		Priority:    jm.Priority,
		InputFile:   jm.InputFile,
		OutputFile:  jm.OutputFile,
		ContentHash: jm.ContentHash,
		Payload:     jm.Payload,
		Attempts:    jm.Attempts,
		MaxAttempts: jm.MaxAttempts,
		WorkerID:    jm.WorkerID,
		CreatedAt:   jm.CreatedAt,
		StartedAt:   jm.StartedAt,
		CompletedAt: jm.CompletedAt,
		Error:       jm.Error,
	}
}

type workerModel struct {
	bun.BaseModel `bun:"table:workers"`

	ID int64 `bun:"id,pk,autoincrement"`

	Type        job.Type      `bun:"worker_type,notnull"`
	ContainerID string        `bun:"container_id,notnull,unique"`
	Status      worker.Status `bun:"status,notnull,default:0"`

	StartedAt     time.Time `bun:"started_at,nullzero,notnull,default:current_timestamp"`
	LastHeartbeat time.Time `bun:"last_heartbeat,nullzero,notnull,default:current_timestamp"`

	JobsProcessed    int64 `bun:"jobs_processed,notnull,default:0"`
	JobsFailed       int64 `bun:"jobs_failed,notnull,default:0"`
	AvgProcessTimeMs int64 `bun:"avg_processing_time_ms,notnull,default:0"`
}

func (wm *workerModel) toWorker() *worker.Worker {
	return &worker.Worker{
		ID:             wm.ID,
		Type:           wm.Type,
		ContainerID:    wm.ContainerID,
		Status:         wm.Status,
		StartedAt:      wm.StartedAt,
		LastHeartbeat:  wm.LastHeartbeat,
		JobsProcessed:  wm.JobsProcessed,
		JobsFailed:     wm.JobsFailed,
		AvgProcessTime: time.Duration(wm.AvgProcessTimeMs) * time.Millisecond,
	}
}

type cacheModel struct {
	bun.BaseModel `bun:"table:results_cache"`

	OutputFile  string `bun:"output_file,pk"`
	ContentHash string `bun:"content_hash,pk"`

	ResultMetadata map[string]any `bun:"result_metadata,type:jsonb"`

	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	LastAccessed time.Time `bun:"last_accessed,nullzero,notnull,default:current_timestamp"`
	AccessCount  int64     `bun:"access_count,notnull,default:0"`
}

type eventModel struct {
	bun.BaseModel `bun:"table:events"`

	ID int64 `bun:"id,pk,autoincrement"`

	Kind     string `bun:"kind,notnull"`
	JobID    *int64 `bun:"job_id,nullzero"`
	WorkerID *int64 `bun:"worker_id,nullzero"`

	Detail map[string]any `bun:"detail,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
