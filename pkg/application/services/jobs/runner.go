package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/application/services/projection"
	"github.com/vsinha/csatrack/pkg/application/services/reconcile"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
)

// ErrUnknownClinic is returned when a clinic group is not configured
var ErrUnknownClinic = errors.New("unknown clinic")

// PayloadSource fetches the raw data of a clinic's contacts
type PayloadSource interface {
	FetchCustomerPayload(ctx context.Context, contactIDs []string) (*entities.CustomerPayload, error)
}

// Config holds the clinic groups and pool size of a Runner
type Config struct {
	Clinics map[string][]string // clinic name -> contact ids
	Workers int
}

// Runner executes reconciliation jobs in the background and stores their projected results
type Runner struct {
	engine  *reconcile.Engine
	source  PayloadSource
	jobs    repositories.JobRepository
	results repositories.ResultRepository
	config  Config
	logger  *zap.Logger
	clock   func() time.Time
	newID   func() string

	completed metric.Int64Counter
	duration  metric.Float64Histogram

	wg sync.WaitGroup
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithLogger sets the runner logger
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock used for job timestamps and projections
func WithClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// WithIDGenerator replaces uuid job ids
func WithIDGenerator(newID func() string) RunnerOption {
	return func(r *Runner) { r.newID = newID }
}

// NewRunner wires a runner. jobs and results are usually the same store.
func NewRunner(engine *reconcile.Engine, source PayloadSource, jobs repositories.JobRepository, results repositories.ResultRepository, config Config, opts ...RunnerOption) (*Runner, error) {
	if engine == nil || source == nil || jobs == nil || results == nil {
		return nil, fmt.Errorf("engine, payload source, job and result repositories are required")
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	r := &Runner{
		engine:  engine,
		source:  source,
		jobs:    jobs,
		results: results,
		config:  config,
		logger:  zap.NewNop(),
		clock:   time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}

	meter := otel.Meter("csatrack/jobs")
	var err error
	if r.completed, err = meter.Int64Counter("csatrack.jobs.completed",
		metric.WithDescription("Reconciliation jobs finished, by status")); err != nil {
		return nil, err
	}
	if r.duration, err = meter.Float64Histogram("csatrack.jobs.duration_ms",
		metric.WithDescription("Wall time of one reconciliation job"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return r, nil
}

// Clinics returns the configured clinic names in sorted order
func (r *Runner) Clinics() []string {
	names := make([]string, 0, len(r.config.Clinics))
	for name := range r.config.Clinics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start records a pending job and reconciles the clinic in the background. The job outlives ctx's
// cancellation; use Wait to drain running jobs.
func (r *Runner) Start(ctx context.Context, clinic string) (string, error) {
	job, err := r.createJob(ctx, clinic)
	if err != nil {
		return "", err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(context.WithoutCancel(ctx), job)
	}()
	return job.ID, nil
}

// Wait blocks until every started job has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Status returns the current state of a job
func (r *Runner) Status(ctx context.Context, id string) (repositories.Job, error) {
	return r.jobs.GetJob(ctx, id)
}

// Result returns the stored JSON projection for a result key
func (r *Runner) Result(ctx context.Context, key string) ([]byte, error) {
	return r.results.LoadResult(ctx, key)
}

// RunAll reconciles every configured clinic over a bounded worker pool and waits for all of them.
// A failed clinic is recorded in the summary; it does not stop the others.
func (r *Runner) RunAll(ctx context.Context) (dto.RunSummary, error) {
	clinics := r.Clinics()
	summary := dto.RunSummary{StartedAt: r.clock(), Clinics: make([]dto.ClinicRun, len(clinics))}
	if len(clinics) == 0 {
		summary.FinishedAt = r.clock()
		return summary, nil
	}

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(r.config.Workers, len(clinics)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				summary.Clinics[i] = r.runOne(ctx, clinics[i])
			}
		}()
	}

feed:
	for i := range clinics {
		select {
		case work <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	for i, run := range summary.Clinics {
		if run.Clinic == "" {
			summary.Clinics[i] = dto.ClinicRun{
				Clinic: clinics[i],
				Status: string(repositories.JobFailed),
				Error:  "not started: " + context.Cause(ctx).Error(),
			}
		}
	}
	summary.FinishedAt = r.clock()
	r.logger.Info("batch reconciliation finished",
		zap.Int("clinics", len(clinics)),
		zap.Int("failed", summary.Failed()),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, clinic string) dto.ClinicRun {
	run := dto.ClinicRun{Clinic: clinic}
	job, err := r.createJob(ctx, clinic)
	if err != nil {
		run.Status = string(repositories.JobFailed)
		run.Error = err.Error()
		return run
	}
	run.JobID = job.ID

	job, summary := r.execute(ctx, job)
	run.Status = string(job.Status)
	run.ResultKey = job.ResultKey
	run.Error = job.Error
	if summary != nil {
		run.InField = len(summary.InFieldSerials)
		run.GlobalOrphans = len(summary.GlobalOrphans)
	}
	return run
}

func (r *Runner) createJob(ctx context.Context, clinic string) (repositories.Job, error) {
	if _, ok := r.config.Clinics[clinic]; !ok {
		return repositories.Job{}, fmt.Errorf("%w: %q", ErrUnknownClinic, clinic)
	}
	now := r.clock().UTC()
	job := repositories.Job{
		ID:        r.newID(),
		Clinic:    clinic,
		Status:    repositories.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.jobs.CreateJob(ctx, job); err != nil {
		return repositories.Job{}, fmt.Errorf("creating job for %s: %w", clinic, err)
	}
	return job, nil
}

// execute runs the job to completion and persists its final state
func (r *Runner) execute(ctx context.Context, job repositories.Job) (repositories.Job, *dto.CustomerSummary) {
	started := r.clock()
	logger := r.logger.With(zap.String("job_id", job.ID), zap.String("clinic", job.Clinic))

	key, summary, err := r.reconcileClinic(ctx, job)
	job.UpdatedAt = r.clock().UTC()
	if err != nil {
		job.Status = repositories.JobFailed
		job.Error = err.Error()
		logger.Error("reconciliation job failed", zap.Error(err))
	} else {
		job.Status = repositories.JobCompleted
		job.ResultKey = key
		logger.Info("reconciliation job completed", zap.String("result_key", key))
	}

	if err := r.jobs.UpdateJob(ctx, job); err != nil {
		logger.Error("failed to persist job state", zap.Error(err))
	}

	attrs := metric.WithAttributes(attribute.String("status", string(job.Status)))
	r.completed.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(r.clock().Sub(started).Milliseconds()), attrs)
	return job, summary
}

func (r *Runner) reconcileClinic(ctx context.Context, job repositories.Job) (string, *dto.CustomerSummary, error) {
	payload, err := r.source.FetchCustomerPayload(ctx, r.config.Clinics[job.Clinic])
	if err != nil {
		return "", nil, fmt.Errorf("fetching payload: %w", err)
	}

	result, err := r.engine.Reconcile(ctx, payload)
	if err != nil {
		return "", nil, fmt.Errorf("reconciling: %w", err)
	}

	summary := projection.Project(result, r.clock(), projection.Options{
		ClinicName: job.Clinic,
		Orders:     payload.SalesOrders,
	})
	blob, err := json.Marshal(summary)
	if err != nil {
		return "", nil, fmt.Errorf("encoding summary: %w", err)
	}

	key := ResultKey(job.Clinic, job.ID)
	if err := r.results.SaveResult(ctx, key, blob); err != nil {
		return "", nil, err
	}
	return key, summary, nil
}

// ResultKey names the stored result of a job
func ResultKey(clinic, jobID string) string {
	return clinic + "/" + jobID + ".json"
}
