// Package client is the Go client library for the board: it keeps a local
// copy of one project's task list, applies drag-and-drop status changes
// optimistically, and reconciles against the events arriving over the
// realtime connection.
package client

import (
	"sync"

	"taskflow/models"
)

// StatusAPI is the server call a drop triggers. Implemented by Client; any
// transport error (timeouts included) counts as failure and causes a
// rollback, with no automatic retry.
type StatusAPI interface {
	UpdateTaskStatus(taskID, status string) (*models.TaskDetails, error)
}

// Board holds the locally mirrored task list of the open project view. It
// may be touched concurrently by the UI and by the event listener, so every
// access goes through the mutex.
type Board struct {
	mu    sync.Mutex
	tasks []models.TaskDetails
	api   StatusAPI
}

func NewBoard(api StatusAPI) *Board {
	return &Board{api: api}
}

// Load replaces the board with a freshly fetched task list. Also the only
// catch-up mechanism after a disconnect: there is no replay of missed
// events, the view re-fetches on entry.
func (b *Board) Load(tasks []models.TaskDetails) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = tasks
}

// Tasks returns a snapshot copy of the current list.
func (b *Board) Tasks() []models.TaskDetails {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make([]models.TaskDetails, len(b.tasks))
	copy(snapshot, b.tasks)
	return snapshot
}

// DropTask handles a drag of taskID onto the status column: the local list
// is mutated first, then the server is asked. On any error the entire
// pre-drop list is restored, not just the one task, so edits racing in
// between cannot be interleaved into a half-reverted state.
func (b *Board) DropTask(taskID, status string) error {
	b.mu.Lock()
	original := b.tasks
	next := make([]models.TaskDetails, len(b.tasks))
	for i, task := range b.tasks {
		if task.ID == taskID {
			task.Status = status
		}
		next[i] = task
	}
	b.tasks = next
	b.mu.Unlock()

	if _, err := b.api.UpdateTaskStatus(taskID, status); err != nil {
		b.mu.Lock()
		b.tasks = original
		b.mu.Unlock()
		return err
	}
	// The local state is already correct; the authoritative copy arrives
	// redundantly via the broadcast and is applied as a no-op replace.
	return nil
}

// ApplyStatusEvent reconciles a broadcast task into the board by replacing
// the matching entry wholesale. Replace-by-ID makes duplicate delivery
// idempotent. Unknown IDs are ignored: the board only mirrors tasks it
// already knows, new tasks arrive through their own event.
func (b *Board) ApplyStatusEvent(task models.TaskDetails) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tasks {
		if b.tasks[i].ID == task.ID {
			next := make([]models.TaskDetails, len(b.tasks))
			copy(next, b.tasks)
			next[i] = task
			b.tasks = next
			return
		}
	}
}

// RemoveTask drops a task from the board, e.g. on a task_deleted event.
func (b *Board) RemoveTask(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.tasks[:0:0]
	for _, task := range b.tasks {
		if task.ID != taskID {
			next = append(next, task)
		}
	}
	b.tasks = next
}
