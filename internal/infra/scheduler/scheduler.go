package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"propertyhub-payments/internal/infra/metrics"
)

// Job is one periodic unit of work.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler runs Jobs on cron specs ("@every 1m", "0 * * * *").
// Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *zerolog.Logger) *Scheduler {
	l := logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: &l}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		log:  &l,
	}
}

// Add registers job under spec. Must be called before Start.
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.log.Info().Str("job", job.Name()).Str("spec", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := job.RunOnce(ctx); err != nil {
		metrics.IncJobRun(job.Name(), "error")
		s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
		return
	}
	metrics.IncJobRun(job.Name(), "ok")
	s.log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("job finished")
}

// Start begins scheduling; jobs receive a context derived from parent.
func (s *Scheduler) Start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	s.cron.Start()
}

// Stop waits for running jobs or for ctx to expire, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log *zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
