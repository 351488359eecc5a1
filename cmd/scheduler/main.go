package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reminder_backend/internal/calendar"
	"reminder_backend/internal/email"
	"reminder_backend/internal/events"
	"reminder_backend/internal/followup"
	"reminder_backend/internal/notification"
	"reminder_backend/internal/scheduler"
	"reminder_backend/platform/config"
	"reminder_backend/platform/db"
	"reminder_backend/platform/logger"
	"reminder_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	cal, err := calendar.Load(cfg.GetCalendarFile())
	if err != nil {
		log.Error("failed to load business calendar", "error", err, "file", cfg.GetCalendarFile())
		panic("failed to load business calendar: " + err.Error())
	}

	sender := email.NewDispatcher(email.NewSender(cfg, log), cfg.GetDispatchRatePerSecond(), log)

	notification.NewSubscriber(sender, cfg.GetManagerEmail(), log).Register(eventBus)

	val := validator.New()

	// Worker-side follow-up wiring (no HTTP handlers required).
	followupModule := followup.NewModule(pool, val, eventBus, sender, cal, cfg, cfg, cfg, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	if err := scheduler.EnqueueAll(ctx, client, "startup"); err != nil {
		log.Warn("startup pass enqueue failed", "error", err)
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}
	go periodic.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, followupModule.Service, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
