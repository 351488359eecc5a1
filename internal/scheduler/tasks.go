package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskEscalationPass = "followups.escalation.pass"

const TaskConsolidationRun = "followups.consolidation.run"

const TaskResumeHeld = "followups.hold.resume"

const TaskSendDue = "followups.send.due"

// PassPayload carries trigger metadata for the periodic follow-up passes.
type PassPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
	TriggeredBy string    `json:"triggeredBy"`
}

func NewEscalationPassTask(payload PassPayload) (*asynq.Task, error) {
	return newPassTask(TaskEscalationPass, payload)
}

func NewConsolidationRunTask(payload PassPayload) (*asynq.Task, error) {
	return newPassTask(TaskConsolidationRun, payload)
}

func NewResumeHeldTask(payload PassPayload) (*asynq.Task, error) {
	return newPassTask(TaskResumeHeld, payload)
}

func NewSendDueTask(payload PassPayload) (*asynq.Task, error) {
	return newPassTask(TaskSendDue, payload)
}

func newPassTask(name string, payload PassPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(name, data), nil
}

func ParsePassPayload(task *asynq.Task) (PassPayload, error) {
	var payload PassPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PassPayload{}, err
	}
	return payload, nil
}
