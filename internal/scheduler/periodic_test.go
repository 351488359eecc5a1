package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type stubSchedulerConfig struct {
	redisURL string
}

func (c stubSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c stubSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c stubSchedulerConfig) GetAsynqQueueName() string { return "followups" }
func (c stubSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func (c stubSchedulerConfig) GetEscalationPassInterval() time.Duration { return 15 * time.Minute }

func (c stubSchedulerConfig) GetConsolidationPassInterval() time.Duration { return time.Hour }

func (c stubSchedulerConfig) GetResumeHeldPassInterval() time.Duration { return 10 * time.Minute }

func TestNewPeriodicRegistersAllPasses(t *testing.T) {
	mr := miniredis.RunT(t)

	periodic, err := NewPeriodic(stubSchedulerConfig{redisURL: "redis://" + mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("new periodic: %v", err)
	}
	if periodic.scheduler == nil {
		t.Fatal("scheduler not initialized")
	}
}

func TestNewPeriodicRequiresRedisURL(t *testing.T) {
	if _, err := NewPeriodic(stubSchedulerConfig{}, nil); err == nil {
		t.Fatal("expected error without redis url")
	}
}

type recordingEnqueuer struct {
	calls []string
	by    []string
	fail  string
}

func (r *recordingEnqueuer) enqueue(name, triggeredBy string) error {
	r.calls = append(r.calls, name)
	r.by = append(r.by, triggeredBy)
	if r.fail == name {
		return context.DeadlineExceeded
	}
	return nil
}

func (r *recordingEnqueuer) EnqueueEscalationPass(_ context.Context, by string) error {
	return r.enqueue(TaskEscalationPass, by)
}

func (r *recordingEnqueuer) EnqueueConsolidationRun(_ context.Context, by string) error {
	return r.enqueue(TaskConsolidationRun, by)
}

func (r *recordingEnqueuer) EnqueueResumeHeld(_ context.Context, by string) error {
	return r.enqueue(TaskResumeHeld, by)
}

func (r *recordingEnqueuer) EnqueueSendDue(_ context.Context, by string) error {
	return r.enqueue(TaskSendDue, by)
}

func TestEnqueueAllCoversEveryPass(t *testing.T) {
	rec := &recordingEnqueuer{}
	if err := EnqueueAll(context.Background(), rec, "startup"); err != nil {
		t.Fatalf("enqueue all: %v", err)
	}

	want := []string{TaskEscalationPass, TaskConsolidationRun, TaskResumeHeld, TaskSendDue}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i, name := range want {
		if rec.calls[i] != name {
			t.Fatalf("call %d = %s, want %s", i, rec.calls[i], name)
		}
		if rec.by[i] != "startup" {
			t.Fatalf("triggered by = %q, want startup", rec.by[i])
		}
	}
}

func TestEnqueueAllStopsOnFirstError(t *testing.T) {
	rec := &recordingEnqueuer{fail: TaskConsolidationRun}
	if err := EnqueueAll(context.Background(), rec, "startup"); err == nil {
		t.Fatal("expected error")
	}
	if len(rec.calls) != 2 {
		t.Fatalf("calls = %v, want to stop after the failing pass", rec.calls)
	}
}
