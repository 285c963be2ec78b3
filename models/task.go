package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task statuses. Any status is reachable from any other in a single
// transition; there is no enforced workflow ordering.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

func ValidTaskStatus(status string) bool {
	switch status {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Attachment struct {
	Filename     string `bson:"filename" json:"filename"`
	OriginalName string `bson:"original_name" json:"originalName"`
	Path         string `bson:"path" json:"path"`
	MimeType     string `bson:"mimetype" json:"mimetype"`
	Size         int64  `bson:"size" json:"size"`
}

type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	ProjectID   string             `bson:"project_id" json:"project_id"`
	Priority    string             `bson:"priority" json:"priority"`
	Status      string             `bson:"status" json:"status"`
	Deadline    *time.Time         `bson:"deadline,omitempty" json:"deadline,omitempty"`
	AssignedTo  string             `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	CreatedBy   string             `bson:"created_by" json:"created_by"`
	Attachments []Attachment       `bson:"attachments" json:"attachments"`
	Order       int                `bson:"order" json:"order"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// TaskDetails is the populated read shape returned to clients: the
// assignedTo/createdBy references are resolved into display objects.
type TaskDetails struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	ProjectID   string       `json:"project_id"`
	Priority    string       `json:"priority"`
	Status      string       `json:"status"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	AssignedTo  *UserRef     `json:"assignedTo,omitempty"`
	CreatedBy   *UserRef     `json:"createdBy,omitempty"`
	Attachments []Attachment `json:"attachments"`
	Order       int          `json:"order"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TaskUpdate carries the mutable fields of a general task edit. Nil
// pointers mean "leave unchanged".
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	Order       *int       `json:"order,omitempty"`
}

type TaskFilter struct {
	Status   string
	Priority string
	Search   string
}

// UserTask is the cross-project task row for the "all my tasks" view.
// Tasks whose project has been deleted keep their row but are presented
// under the DeletedProject sentinel.
type UserTask struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Project   ProjectRef `json:"project"`
}
