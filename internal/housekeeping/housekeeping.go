// Package housekeeping runs periodic maintenance on the reservation store.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "parkalot/internal/log"
)

// Completer closes reservations whose end has passed.
type Completer interface {
	CompleteEnded(ctx context.Context) (int64, error)
}

// Scheduler runs a Completer on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	job     Completer
	timeout time.Duration
	ctx     context.Context
}

// New validates spec (standard 5 field cron syntax or descriptors such as
// "@every 5m") and prepares a scheduler evaluating it in loc.
func New(spec string, loc *time.Location, job Completer) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		job:     job,
		timeout: time.Minute,
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("housekeeping schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs a single pass.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.job.CompleteEnded(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		appLog.Info("housekeeping completed reservations", "count", n)
	}
	return n, nil
}

func (s *Scheduler) tick() {
	if _, err := s.RunOnce(s.ctx); err != nil {
		appLog.Error("housekeeping pass failed", err)
	}
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for
// a running pass to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	appLog.Info("housekeeping scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("housekeeping scheduler stopped")
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
