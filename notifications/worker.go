package notifications

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"taskflow/events"
)

// NotificationStore is what the worker needs from the repo; narrowed so
// tests can substitute an in-memory store.
type NotificationStore interface {
	Insert(notification *Notification) error
}

// Worker turns domain events into stored notifications.
type Worker struct {
	logger *log.Logger
	store  NotificationStore
}

func NewWorker(logger *log.Logger, store NotificationStore) *Worker {
	return &Worker{logger: logger, store: store}
}

// Subscribe attaches the worker to the event subjects with a queue group so
// multiple instances split the load.
func (w *Worker) Subscribe(nc *nats.Conn) error {
	if _, err := nc.QueueSubscribe(events.SubjectTaskStatus, "notifications", w.onTaskStatus); err != nil {
		return err
	}
	if _, err := nc.QueueSubscribe(events.SubjectTaskCreated, "notifications", w.onTaskCreated); err != nil {
		return err
	}
	if _, err := nc.QueueSubscribe(events.SubjectProjectCreated, "notifications", w.onProjectCreated); err != nil {
		return err
	}
	return nil
}

func (w *Worker) onTaskStatus(msg *nats.Msg) {
	var event events.TaskEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.logger.Println("bad task status event:", err)
		return
	}
	w.HandleTaskStatus(event)
}

// HandleTaskStatus notifies the assignee when someone else moves their task.
func (w *Worker) HandleTaskStatus(event events.TaskEvent) {
	if event.AssignedTo == "" || event.AssignedTo == event.Actor {
		return
	}
	w.insert(event.AssignedTo, fmt.Sprintf("Task %q moved to %s", event.Title, event.Status))
}

func (w *Worker) onTaskCreated(msg *nats.Msg) {
	var event events.TaskEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.logger.Println("bad task created event:", err)
		return
	}
	w.HandleTaskCreated(event)
}

// HandleTaskCreated notifies the assignee of a task created for them.
func (w *Worker) HandleTaskCreated(event events.TaskEvent) {
	if event.AssignedTo == "" || event.AssignedTo == event.Actor {
		return
	}
	w.insert(event.AssignedTo, fmt.Sprintf("You were assigned task %q", event.Title))
}

func (w *Worker) onProjectCreated(msg *nats.Msg) {
	var event events.ProjectEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.logger.Println("bad project created event:", err)
		return
	}
	w.HandleProjectCreated(event)
}

// HandleProjectCreated notifies every initial member of the new project.
func (w *Worker) HandleProjectCreated(event events.ProjectEvent) {
	for _, member := range event.Members {
		if member == event.Owner {
			continue
		}
		w.insert(member, fmt.Sprintf("You were added to project %q", event.Title))
	}
}

func (w *Worker) insert(userID, message string) {
	err := w.store.Insert(&Notification{
		UserID:   userID,
		Message:  message,
		IsActive: true,
	})
	if err != nil {
		w.logger.Println("failed to store notification:", err)
	}
}
