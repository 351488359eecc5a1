package scheduler

import (
	"context"
	"fmt"

	"reminder_backend/internal/followup/service"
	"reminder_backend/platform/config"
	"reminder_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	svc    *service.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		svc:    svc,
		log:    log,
	}

	mux.HandleFunc(TaskEscalationPass, w.handleEscalationPass)
	mux.HandleFunc(TaskConsolidationRun, w.handleConsolidationRun)
	mux.HandleFunc(TaskResumeHeld, w.handleResumeHeld)
	mux.HandleFunc(TaskSendDue, w.handleSendDue)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEscalationPass(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePassPayload(task)
	if err != nil {
		return err
	}

	result, err := w.svc.RunEscalationPass(ctx)
	if err != nil {
		return err
	}

	w.log.Info("escalation pass finished",
		"triggered_by", payload.TriggeredBy,
		"processed", result.Processed,
		"escalated", result.Escalated,
		"held", result.Held,
		"accelerated", result.Accelerated,
		"failed", result.Failed,
	)
	return nil
}

func (w *Worker) handleConsolidationRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePassPayload(task)
	if err != nil {
		return err
	}

	result, err := w.svc.RunConsolidationPass(ctx)
	if err != nil {
		return err
	}

	w.log.Info("consolidation run finished",
		"triggered_by", payload.TriggeredBy,
		"candidates", result.Candidates,
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return nil
}

func (w *Worker) handleResumeHeld(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePassPayload(task)
	if err != nil {
		return err
	}

	resumed, err := w.svc.ResumeHeldPass(ctx)
	if err != nil {
		return err
	}

	if resumed > 0 {
		w.log.Info("held follow-ups resumed",
			"triggered_by", payload.TriggeredBy,
			"resumed", resumed,
		)
	}
	return nil
}

func (w *Worker) handleSendDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePassPayload(task)
	if err != nil {
		return err
	}

	result, err := w.svc.SendDuePass(ctx)
	if err != nil {
		return err
	}

	if result.Sent > 0 || result.Failed > 0 {
		w.log.Info("due follow-ups dispatched",
			"triggered_by", payload.TriggeredBy,
			"sent", result.Sent,
			"failed", result.Failed,
		)
	}
	return nil
}
