package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/dto"
)

// Notifier publishes the summary of a batch run
type Notifier interface {
	NotifyRun(ctx context.Context, summary dto.RunSummary) error
}

// BatchRunner runs every clinic once
type BatchRunner interface {
	RunAll(ctx context.Context) (dto.RunSummary, error)
}

// Scheduler triggers batch runs on a standard 5-field cron schedule
type Scheduler struct {
	cron     *cron.Cron
	runner   BatchRunner
	notifier Notifier
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler parses spec (minute hour day-of-month month day-of-week) in loc.
// notifier may be nil.
func NewScheduler(spec string, loc *time.Location, runner BatchRunner, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("schedule cannot be empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     c,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if _, err := c.AddFunc(spec, s.Trigger); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing on schedule
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("batch reconciliation scheduled", zap.Time("next", e.Next))
	}
}

// Stop cancels any in-flight run and waits for it to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Next reports the next scheduled fire time
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Trigger runs one batch immediately and posts its summary
func (s *Scheduler) Trigger() {
	summary, err := s.runner.RunAll(s.ctx)
	if err != nil {
		s.logger.Error("scheduled batch run interrupted", zap.Error(err))
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRun(s.ctx, summary); err != nil {
		s.logger.Error("failed to post run summary", zap.Error(err))
	}
}
