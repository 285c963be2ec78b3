// Package events carries domain events over NATS to interested workers
// (currently the notification writer). The bus is fire-and-forget: publish
// failures are logged and never surfaced to the HTTP caller.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectTaskStatus     = "taskflow.tasks.status"
	SubjectTaskCreated    = "taskflow.tasks.created"
	SubjectProjectCreated = "taskflow.projects.created"
)

// TaskEvent describes a task-level change. Actor is the user who performed
// it; AssignedTo may be empty.
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	ProjectID  string    `json:"project_id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Actor      string    `json:"actor"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProjectEvent struct {
	ProjectID  string    `json:"project_id"`
	Title      string    `json:"title"`
	Owner      string    `json:"owner"`
	Members    []string  `json:"members"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Bus struct {
	nc     *nats.Conn
	logger *log.Logger
}

func NewBus(nc *nats.Conn, logger *log.Logger) *Bus {
	return &Bus{nc: nc, logger: logger}
}

func (b *Bus) Publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Println("cannot marshal event:", err)
		return
	}
	if err := b.nc.Publish(subject, data); err != nil {
		b.logger.Printf("failed to publish %s: %v", subject, err)
	}
}
