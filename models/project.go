package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ProjectInProgress = "in-progress"
	ProjectCompleted  = "completed"
	ProjectOnHold     = "on-hold"
)

const DefaultProjectColor = "#3B82F6"

type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Owner       string             `bson:"owner" json:"owner"`
	Members     []string           `bson:"members" json:"members"`
	Status      string             `bson:"status" json:"status"`
	Priority    string             `bson:"priority" json:"priority"`
	Deadline    *time.Time         `bson:"deadline,omitempty" json:"deadline,omitempty"`
	IsActive    bool               `bson:"is_active" json:"isActive"`
	Color       string             `bson:"color" json:"color"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsOwner reports whether userID created this project. Status transitions
// and project mutation are reserved to the owner; membership is not enough.
func (p *Project) IsOwner(userID string) bool {
	return p.Owner == userID
}

// CanEdit reports whether userID may perform general task mutation inside
// this project: the owner always can, members can regardless of whether the
// owner also appears in the members set.
func (p *Project) CanEdit(userID string) bool {
	if p.Owner == userID {
		return true
	}
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ProjectUpdate carries the owner-editable project fields.
type ProjectUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Members     *[]string  `json:"members,omitempty"`
}

// ProjectSummary is the populated list shape with task counters.
type ProjectSummary struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Owner          *UserRef   `json:"owner"`
	Members        []UserRef  `json:"members"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	IsActive       bool       `json:"isActive"`
	Color          string     `json:"color"`
	CreatedAt      time.Time  `json:"created_at"`
	TotalTasks     int64      `json:"totalTasks"`
	CompletedTasks int64      `json:"completedTasks"`
}

// ProjectRef is the lightweight project reference embedded in task rows.
type ProjectRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// DeletedProject is the sentinel shown for tasks whose project no longer
// exists. Read paths must tolerate such orphans instead of dropping them.
var DeletedProject = ProjectRef{ID: "deleted", Title: "Deleted Project", Color: "#808080"}

type ProjectStats struct {
	TotalTasks      int64 `json:"totalTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	TodoTasks       int64 `json:"todoTasks"`
	Progress        int   `json:"progress"`
}
