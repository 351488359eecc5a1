package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"reminder_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
	now    func() time.Time
}

// PassEnqueuer is the narrow surface exposed to callers that only kick off
// follow-up passes.
type PassEnqueuer interface {
	EnqueueEscalationPass(ctx context.Context, triggeredBy string) error
	EnqueueConsolidationRun(ctx context.Context, triggeredBy string) error
	EnqueueResumeHeld(ctx context.Context, triggeredBy string) error
	EnqueueSendDue(ctx context.Context, triggeredBy string) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
		now:    time.Now,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueEscalationPass(ctx context.Context, triggeredBy string) error {
	return c.enqueuePass(ctx, NewEscalationPassTask, triggeredBy)
}

func (c *Client) EnqueueConsolidationRun(ctx context.Context, triggeredBy string) error {
	return c.enqueuePass(ctx, NewConsolidationRunTask, triggeredBy)
}

func (c *Client) EnqueueResumeHeld(ctx context.Context, triggeredBy string) error {
	return c.enqueuePass(ctx, NewResumeHeldTask, triggeredBy)
}

func (c *Client) EnqueueSendDue(ctx context.Context, triggeredBy string) error {
	return c.enqueuePass(ctx, NewSendDueTask, triggeredBy)
}

func (c *Client) enqueuePass(ctx context.Context, build func(PassPayload) (*asynq.Task, error), triggeredBy string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := build(PassPayload{
		RequestedAt: c.now().UTC(),
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		return err
	}

	// Unique keeps overlapping pass runs out of the queue when a previous
	// run is still pending.
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
