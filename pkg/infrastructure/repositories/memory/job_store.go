package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
)

// JobStore keeps jobs and result blobs in process memory. Safe for concurrent use.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]repositories.Job
	results map[string][]byte
	now     func() time.Time
}

// NewJobStore creates an empty in-memory job and result store
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[string]repositories.Job),
		results: make(map[string][]byte),
		now:     time.Now,
	}
}

// Verify interface compliance
var (
	_ repositories.JobRepository    = (*JobStore)(nil)
	_ repositories.ResultRepository = (*JobStore)(nil)
)

func (s *JobStore) CreateJob(_ context.Context, job repositories.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now().UTC()
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *JobStore) UpdateJob(_ context.Context, job repositories.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.jobs[job.ID]
	if !exists {
		return fmt.Errorf("%w: %s", entities.ErrJobNotFound, job.ID)
	}
	existing.Status = job.Status
	existing.ResultKey = job.ResultKey
	existing.Error = job.Error
	existing.UpdatedAt = job.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = s.now().UTC()
	}
	s.jobs[job.ID] = existing
	return nil
}

func (s *JobStore) GetJob(_ context.Context, id string) (repositories.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return repositories.Job{}, fmt.Errorf("%w: %s", entities.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *JobStore) SaveResult(_ context.Context, key string, blob []byte) error {
	if key == "" {
		return fmt.Errorf("result key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = append([]byte(nil), blob...)
	return nil
}

func (s *JobStore) LoadResult(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, exists := s.results[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", entities.ErrResultNotFound, key)
	}
	return append([]byte(nil), blob...), nil
}
