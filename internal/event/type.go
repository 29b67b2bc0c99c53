package event

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeWorkCompleted EventType = "work.completed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

// WorkCompletedEvent is published once per finished work.
type WorkCompletedEvent struct {
	BaseEvent
	WorkID      int64  `json:"work_id"`
	LearnerID   string `json:"learner_id"`
	Mode        string `json:"mode"`
	Name        string `json:"name,omitempty"`
	RawTotal    int    `json:"raw_total"`
	MaxTotal    int    `json:"max_total"`
	ScaledTotal *int   `json:"scaled_total,omitempty"`
	ShareToken  string `json:"share_token"`
}

func NewWorkCompletedEvent(workID int64, learnerID, mode, name string, raw, maxTotal int, scaled *int, token string) *WorkCompletedEvent {
	return &WorkCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.NewString(),
			Type:      EventTypeWorkCompleted,
			Timestamp: time.Now().Unix(),
			Version:   "1.0",
		},
		WorkID:      workID,
		LearnerID:   learnerID,
		Mode:        mode,
		Name:        name,
		RawTotal:    raw,
		MaxTotal:    maxTotal,
		ScaledTotal: scaled,
		ShareToken:  token,
	}
}
