package handlers

import (
	"context"
	"io"
	"time"

	"taskflow/models"
)

// The handler structs depend on these narrowed interfaces instead of the
// concrete Mongo repos so tests can inject in-memory fakes.

type TaskStore interface {
	Insert(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Details(ctx context.Context, id string) (*models.TaskDetails, error)
	Update(ctx context.Context, id string, update models.TaskUpdate) error
	UpdateStatus(ctx context.Context, id string, status string) error
	AddAttachment(ctx context.Context, id string, attachment models.Attachment) error
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
	ListByProject(ctx context.Context, projectID string, filter models.TaskFilter) ([]models.TaskDetails, error)
	ListForUser(ctx context.Context, projectIDs []string) ([]models.UserTask, error)
}

type ProjectStore interface {
	Insert(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, id string, update models.ProjectUpdate) error
	Delete(ctx context.Context, id string) error
	IDsForUser(ctx context.Context, userID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]models.ProjectSummary, error)
	Summary(ctx context.Context, project *models.Project, refs map[string]models.UserRef) (*models.ProjectSummary, error)
	Stats(ctx context.Context, projectID string) (*models.ProjectStats, error)
}

type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateActive(ctx context.Context, id string, isActive bool) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type TaskStatsStore interface {
	CountAll(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	CountInProjects(ctx context.Context, projectIDs []string, status string) (int64, error)
	CountByPriorityInProjects(ctx context.Context, projectIDs []string, priority string) (int64, error)
	CountOverdueInProjects(ctx context.Context, projectIDs []string, now time.Time) (int64, error)
}

type ProjectStatsStore interface {
	Count(ctx context.Context) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	IDsForUser(ctx context.Context, userID string) ([]string, error)
	ListAll(ctx context.Context) ([]models.ProjectSummary, error)
}

type UserStatsStore interface {
	Count(ctx context.Context) (int64, error)
}

// Broadcaster is the realtime hub surface the handlers publish into.
type Broadcaster interface {
	Publish(projectID, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// EventPublisher is the NATS bus surface; publishing never returns an error
// to the request path.
type EventPublisher interface {
	Publish(subject string, payload interface{})
}

// FileStore is the attachment byte store.
type FileStore interface {
	Save(taskID, storedName string, content io.Reader) (string, error)
	DeleteTaskFiles(taskID string) error
}
