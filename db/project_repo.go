package db

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskflow/models"
)

type ProjectRepo struct {
	cli    *mongo.Client
	logger *log.Logger
	users  *UserRepo
	tasks  *TaskRepo
}

func NewProjectRepo(client *mongo.Client, logger *log.Logger) *ProjectRepo {
	return &ProjectRepo{
		cli:    client,
		logger: logger,
		users:  NewUserRepo(client, logger),
		tasks:  NewTaskRepo(client, logger),
	}
}

func (pr *ProjectRepo) collection() *mongo.Collection {
	return pr.cli.Database(database).Collection("projects")
}

func (pr *ProjectRepo) Insert(ctx context.Context, project *models.Project) error {
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.Members == nil {
		project.Members = []string{}
	}
	if project.Status == "" {
		project.Status = models.ProjectInProgress
	}
	if project.Priority == "" {
		project.Priority = models.PriorityMedium
	}
	if project.Color == "" {
		project.Color = models.DefaultProjectColor
	}
	_, err := pr.collection().InsertOne(ctx, project)
	return err
}

func (pr *ProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var project models.Project
	err = pr.collection().FindOne(ctx, bson.M{"_id": objectID}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &project, nil
}

func (pr *ProjectRepo) Update(ctx context.Context, id string, update models.ProjectUpdate) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	set := bson.M{"updated_at": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Priority != nil {
		set["priority"] = *update.Priority
	}
	if update.Deadline != nil {
		set["deadline"] = *update.Deadline
	}
	if update.IsActive != nil {
		set["is_active"] = *update.IsActive
	}
	if update.Color != nil {
		set["color"] = *update.Color
	}
	if update.Members != nil {
		set["members"] = *update.Members
	}
	result, err := pr.collection().UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (pr *ProjectRepo) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := pr.collection().DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IDsForUser returns the IDs of every project where the user is the owner
// or a member.
func (pr *ProjectRepo) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	cursor, err := pr.collection().Find(ctx, ownerOrMember(userID))
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(projects))
	for i := range projects {
		ids = append(ids, projects[i].ID.Hex())
	}
	return ids, nil
}

// ListForUser returns populated summaries, with per-project task counters,
// for every project the user owns or belongs to.
func (pr *ProjectRepo) ListForUser(ctx context.Context, userID string) ([]models.ProjectSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := pr.collection().Find(ctx, ownerOrMember(userID), opts)
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return pr.summarize(ctx, projects)
}

// ListAll is the admin view over every project on the platform.
func (pr *ProjectRepo) ListAll(ctx context.Context) ([]models.ProjectSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := pr.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return pr.summarize(ctx, projects)
}

func (pr *ProjectRepo) summarize(ctx context.Context, projects []models.Project) ([]models.ProjectSummary, error) {
	ids := make([]string, 0, len(projects))
	for i := range projects {
		ids = append(ids, projects[i].Owner)
		ids = append(ids, projects[i].Members...)
	}
	refs, err := pr.users.Refs(ctx, ids)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ProjectSummary, 0, len(projects))
	for i := range projects {
		summary, err := pr.Summary(ctx, &projects[i], refs)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// Summary builds the populated shape for a single project. refs may be nil,
// in which case the user references are resolved here.
func (pr *ProjectRepo) Summary(ctx context.Context, project *models.Project, refs map[string]models.UserRef) (*models.ProjectSummary, error) {
	if refs == nil {
		var err error
		refs, err = pr.users.Refs(ctx, append([]string{project.Owner}, project.Members...))
		if err != nil {
			return nil, err
		}
	}
	id := project.ID.Hex()
	total, err := pr.tasks.CountByProject(ctx, id, "")
	if err != nil {
		return nil, err
	}
	completed, err := pr.tasks.CountByProject(ctx, id, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	summary := models.ProjectSummary{
		ID:             id,
		Title:          project.Title,
		Description:    project.Description,
		Members:        []models.UserRef{},
		Status:         project.Status,
		Priority:       project.Priority,
		Deadline:       project.Deadline,
		IsActive:       project.IsActive,
		Color:          project.Color,
		CreatedAt:      project.CreatedAt,
		TotalTasks:     total,
		CompletedTasks: completed,
	}
	if ref, ok := refs[project.Owner]; ok {
		owner := ref
		summary.Owner = &owner
	}
	for _, m := range project.Members {
		if ref, ok := refs[m]; ok {
			summary.Members = append(summary.Members, ref)
		}
	}
	return &summary, nil
}

// Stats computes the per-status task breakdown used by the project detail
// header.
func (pr *ProjectRepo) Stats(ctx context.Context, projectID string) (*models.ProjectStats, error) {
	total, err := pr.tasks.CountByProject(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	completed, err := pr.tasks.CountByProject(ctx, projectID, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	inProgress, err := pr.tasks.CountByProject(ctx, projectID, models.StatusInProgress)
	if err != nil {
		return nil, err
	}
	todo, err := pr.tasks.CountByProject(ctx, projectID, models.StatusTodo)
	if err != nil {
		return nil, err
	}
	stats := &models.ProjectStats{
		TotalTasks:      total,
		CompletedTasks:  completed,
		InProgressTasks: inProgress,
		TodoTasks:       todo,
	}
	if total > 0 {
		stats.Progress = int(float64(completed)/float64(total)*100 + 0.5)
	}
	return stats, nil
}

func (pr *ProjectRepo) Count(ctx context.Context) (int64, error) {
	return pr.collection().CountDocuments(ctx, bson.M{})
}

func (pr *ProjectRepo) CountActive(ctx context.Context) (int64, error) {
	return pr.collection().CountDocuments(ctx, bson.M{"is_active": true})
}

func ownerOrMember(userID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"owner": userID},
		bson.M{"members": userID},
	}}
}
