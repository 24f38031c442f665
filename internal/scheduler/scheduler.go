// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"outreach-engine/internal/logging"
)

type Task func(ctx context.Context) error

type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
}

// New creates a scheduler whose tasks receive ctx. Overlapping runs of the
// same task are skipped.
func New(ctx context.Context, log *zap.Logger) *Scheduler {
	log = logging.OrNop(log).Named("scheduler")
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		log:  log,
		ctx:  ctx,
	}
}

// Add registers task under a standard cron spec or "@every <duration>".
// An empty spec leaves the task unscheduled.
func (s *Scheduler) Add(spec, name string, task Task) error {
	if spec == "" {
		s.log.Info("task disabled", zap.String("task", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := task(s.ctx); err != nil {
			s.log.Warn("task error", zap.String("task", name), zap.Error(err))
			return
		}
		s.log.Debug("task done", zap.String("task", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for running ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct{ z *zap.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.z.Debug(msg, zap.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.z.Error(msg, zap.Error(err), zap.Any("kv", kv))
}
