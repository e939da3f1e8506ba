package repositories

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of an asynchronous reconciliation job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one asynchronous reconciliation
type Job struct {
	ID        string
	Clinic    string
	Status    JobStatus
	ResultKey string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobRepository persists job state
type JobRepository interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
}

// ResultRepository stores reconciliation results as opaque JSON blobs keyed by identifier
type ResultRepository interface {
	SaveResult(ctx context.Context, key string, blob []byte) error
	LoadResult(ctx context.Context, key string) ([]byte, error)
}
