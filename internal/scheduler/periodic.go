package scheduler

import (
	"context"
	"fmt"
	"time"

	"reminder_backend/platform/config"
	"reminder_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	defaultEscalationInterval    = 15 * time.Minute
	defaultConsolidationInterval = time.Hour
	defaultResumeHeldInterval    = 10 * time.Minute
	defaultSendDueInterval       = time.Minute
)

// Periodic registers the follow-up passes on an asynq scheduler so they
// are enqueued on their configured intervals. It runs alongside the
// worker, so a single scheduler binary drives the whole pipeline.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC})

	entries := []struct {
		name     string
		interval time.Duration
		build    func(PassPayload) (*asynq.Task, error)
	}{
		{TaskEscalationPass, intervalOrDefault(cfg.GetEscalationPassInterval(), defaultEscalationInterval), NewEscalationPassTask},
		{TaskConsolidationRun, intervalOrDefault(cfg.GetConsolidationPassInterval(), defaultConsolidationInterval), NewConsolidationRunTask},
		{TaskResumeHeld, intervalOrDefault(cfg.GetResumeHeldPassInterval(), defaultResumeHeldInterval), NewResumeHeldTask},
		{TaskSendDue, defaultSendDueInterval, NewSendDueTask},
	}
	for _, e := range entries {
		task, err := e.build(PassPayload{TriggeredBy: "interval"})
		if err != nil {
			return nil, err
		}
		// Unique keeps a slow pass from stacking up behind itself.
		spec := fmt.Sprintf("@every %s", e.interval)
		if _, err := sched.Register(spec, task, asynq.Queue(queue), asynq.Unique(time.Minute)); err != nil {
			return nil, fmt.Errorf("register %s: %w", e.name, err)
		}
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

// Run blocks until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}

// EnqueueAll kicks off every pass once. Used at worker startup so a
// fresh deployment does not wait a full interval for its first pass.
func EnqueueAll(ctx context.Context, e PassEnqueuer, triggeredBy string) error {
	passes := []func(context.Context, string) error{
		e.EnqueueEscalationPass,
		e.EnqueueConsolidationRun,
		e.EnqueueResumeHeld,
		e.EnqueueSendDue,
	}
	for _, enqueue := range passes {
		if err := enqueue(ctx, triggeredBy); err != nil {
			return err
		}
	}
	return nil
}

func intervalOrDefault(interval, fallback time.Duration) time.Duration {
	if interval <= 0 {
		return fallback
	}
	return interval
}
