package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/metrics"
)

const defaultSchedule = "@every 1h"

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Schedule is a standard five-field expression or a descriptor such as
	// "@every 30m". Empty means hourly.
	Schedule string
}

// Service runs every registered job once per schedule tick while holding
// the cluster-wide lock. Ticks that land while a cycle is still running are
// dropped.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	schedule robfig.Schedule
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil || params.Lock == nil {
		return nil, errors.New("cron: logger and lock are required")
	}
	spec := params.Schedule
	if spec == "" {
		spec = defaultSchedule
	}
	schedule, err := robfig.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("cron: parse schedule %q: %w", spec, err)
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		schedule: schedule,
		now:      time.Now,
	}, nil
}

// Run fires one cycle right away, then hands the schedule to a robfig
// scheduler until ctx ends. It waits for an in-flight cycle before returning.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx)

	cl := cronLogger{ctx: ctx, logg: s.logg}
	scheduler := robfig.New(robfig.WithChain(robfig.Recover(cl), robfig.SkipIfStillRunning(cl)))
	scheduler.Schedule(s.schedule, robfig.FuncJob(func() { s.cycle(ctx) }))
	scheduler.Start()
	s.logg.Info(s.logg.WithField(ctx, "next_run", s.NextRun()), "cron.scheduler.started")

	<-ctx.Done()
	<-scheduler.Stop().Done()
	s.logg.Info(ctx, "cron.scheduler.stopped")
	return ctx.Err()
}

func (s *Service) NextRun() time.Time {
	return s.schedule.Next(s.now())
}

func (s *Service) cycle(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "cron.cycle.failed", err)
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron.cycle.skipped_locked")
		return nil
	}
	defer func() {
		// Release with a fresh context so shutdown does not strand the lock.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.lock.release_failed", err)
		}
	}()

	jobs := s.registry.Jobs()
	failed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"jobs": len(jobs), "failed": failed}), "cron.cycle.done")
	return nil
}

// runJob times one job and converts a panic into an error so the remaining
// jobs in the cycle still run.
func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	jobCtx := s.logg.WithJob(ctx, name)
	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		finished := s.now()
		took := finished.Sub(start)
		s.metrics.Observe(name, took, finished, err)

		doneCtx := s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
		if err != nil {
			s.logg.Error(doneCtx, "cron.job.failed", err)
			return
		}
		s.logg.Info(doneCtx, "cron.job.done")
	}()
	return job.Run(jobCtx)
}

// cronLogger feeds robfig's scheduler diagnostics into the service logger.
type cronLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logg.Debug(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron.scheduler."+msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logg.Error(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron.scheduler."+msg, err)
}

func pairs(kv []any) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
