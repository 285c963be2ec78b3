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

type TaskRepo struct {
	cli    *mongo.Client
	logger *log.Logger
	users  *UserRepo
}

func NewTaskRepo(client *mongo.Client, logger *log.Logger) *TaskRepo {
	return &TaskRepo{cli: client, logger: logger, users: NewUserRepo(client, logger)}
}

func (tr *TaskRepo) collection() *mongo.Collection {
	return tr.cli.Database(database).Collection("tasks")
}

func (tr *TaskRepo) Insert(ctx context.Context, task *models.Task) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Attachments == nil {
		task.Attachments = []models.Attachment{}
	}
	_, err := tr.collection().InsertOne(ctx, task)
	return err
}

func (tr *TaskRepo) GetByID(ctx context.Context, id string) (*models.Task, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var task models.Task
	err = tr.collection().FindOne(ctx, bson.M{"_id": objectID}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &task, nil
}

// Details loads a task and resolves its assignedTo/createdBy references
// into display objects. This is the shape sent to clients and broadcast to
// project rooms.
func (tr *TaskRepo) Details(ctx context.Context, id string) (*models.TaskDetails, error) {
	task, err := tr.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := tr.populate(ctx, []models.Task{*task})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (tr *TaskRepo) populate(ctx context.Context, tasks []models.Task) ([]models.TaskDetails, error) {
	ids := make([]string, 0, len(tasks)*2)
	for i := range tasks {
		if tasks[i].AssignedTo != "" {
			ids = append(ids, tasks[i].AssignedTo)
		}
		if tasks[i].CreatedBy != "" {
			ids = append(ids, tasks[i].CreatedBy)
		}
	}
	refs, err := tr.users.Refs(ctx, ids)
	if err != nil {
		return nil, err
	}
	details := make([]models.TaskDetails, 0, len(tasks))
	for i := range tasks {
		t := tasks[i]
		d := models.TaskDetails{
			ID:          t.ID.Hex(),
			Title:       t.Title,
			Description: t.Description,
			ProjectID:   t.ProjectID,
			Priority:    t.Priority,
			Status:      t.Status,
			Deadline:    t.Deadline,
			Attachments: t.Attachments,
			Order:       t.Order,
			CreatedAt:   t.CreatedAt,
		}
		if d.Attachments == nil {
			d.Attachments = []models.Attachment{}
		}
		if ref, ok := refs[t.AssignedTo]; ok {
			assigned := ref
			d.AssignedTo = &assigned
		}
		if ref, ok := refs[t.CreatedBy]; ok {
			creator := ref
			d.CreatedBy = &creator
		}
		details = append(details, d)
	}
	return details, nil
}

func (tr *TaskRepo) Update(ctx context.Context, id string, update models.TaskUpdate) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	set := bson.M{}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Priority != nil {
		set["priority"] = *update.Priority
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Deadline != nil {
		set["deadline"] = *update.Deadline
	}
	if update.AssignedTo != nil {
		set["assigned_to"] = *update.AssignedTo
	}
	if update.Order != nil {
		set["order"] = *update.Order
	}
	if len(set) == 0 {
		return nil
	}
	result, err := tr.collection().UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus writes the single status field. The write is atomic at the
// storage layer; concurrent writers race with last-write-wins semantics.
func (tr *TaskRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := tr.collection().UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (tr *TaskRepo) AddAttachment(ctx context.Context, id string, attachment models.Attachment) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := tr.collection().UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$push": bson.M{"attachments": attachment}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (tr *TaskRepo) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := tr.collection().DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByProject removes every task of a project; used by the project
// delete cascade.
func (tr *TaskRepo) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	result, err := tr.collection().DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (tr *TaskRepo) ListByProject(ctx context.Context, projectID string, filter models.TaskFilter) ([]models.TaskDetails, error) {
	query := bson.M{"project_id": projectID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Priority != "" {
		query["priority"] = filter.Priority
	}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "created_at", Value: -1}})
	cursor, err := tr.collection().Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tr.populate(ctx, tasks)
}

// ListForUser returns every task across the given projects, sorted by
// deadline. Orphaned tasks (project deleted out from under them) are kept
// and presented under the DeletedProject sentinel.
func (tr *TaskRepo) ListForUser(ctx context.Context, projectIDs []string) ([]models.UserTask, error) {
	if len(projectIDs) == 0 {
		return []models.UserTask{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "deadline", Value: 1}})
	cursor, err := tr.collection().Find(ctx, bson.M{"project_id": bson.M{"$in": projectIDs}}, opts)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}

	rows := make([]models.UserTask, 0, len(tasks))
	for i := range tasks {
		t := tasks[i]
		rows = append(rows, models.UserTask{
			ID:        t.ID.Hex(),
			Title:     t.Title,
			Status:    t.Status,
			Priority:  t.Priority,
			Deadline:  t.Deadline,
			CreatedAt: t.CreatedAt,
			Project:   models.ProjectRef{ID: t.ProjectID},
		})
	}

	refs, err := tr.projectRefs(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	return attachProjectRefs(rows, refs), nil
}

func (tr *TaskRepo) projectRefs(ctx context.Context, projectIDs []string) (map[string]models.ProjectRef, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(projectIDs))
	for _, id := range projectIDs {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, objectID)
	}
	refs := make(map[string]models.ProjectRef, len(objectIDs))
	if len(objectIDs) == 0 {
		return refs, nil
	}
	cursor, err := tr.cli.Database(database).Collection("projects").Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	for i := range projects {
		p := projects[i]
		refs[p.ID.Hex()] = models.ProjectRef{ID: p.ID.Hex(), Title: p.Title, Color: p.Color}
	}
	return refs, nil
}

// attachProjectRefs swaps the bare project ID on each row for the full
// reference, falling back to the DeletedProject sentinel for unknown IDs.
func attachProjectRefs(rows []models.UserTask, refs map[string]models.ProjectRef) []models.UserTask {
	for i := range rows {
		if ref, ok := refs[rows[i].Project.ID]; ok {
			rows[i].Project = ref
		} else {
			rows[i].Project = models.DeletedProject
		}
	}
	return rows
}

func (tr *TaskRepo) CountAll(ctx context.Context) (int64, error) {
	return tr.collection().CountDocuments(ctx, bson.M{})
}

func (tr *TaskRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	return tr.collection().CountDocuments(ctx, bson.M{"status": status})
}

func (tr *TaskRepo) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	return tr.collection().CountDocuments(ctx, bson.M{
		"deadline": bson.M{"$lt": now},
		"status":   bson.M{"$ne": models.StatusCompleted},
	})
}

func (tr *TaskRepo) CountByProject(ctx context.Context, projectID string, status string) (int64, error) {
	query := bson.M{"project_id": projectID}
	if status != "" {
		query["status"] = status
	}
	return tr.collection().CountDocuments(ctx, query)
}

func (tr *TaskRepo) CountInProjects(ctx context.Context, projectIDs []string, status string) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	query := bson.M{"project_id": bson.M{"$in": projectIDs}}
	if status != "" {
		query["status"] = status
	}
	return tr.collection().CountDocuments(ctx, query)
}

func (tr *TaskRepo) CountByPriorityInProjects(ctx context.Context, projectIDs []string, priority string) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	return tr.collection().CountDocuments(ctx, bson.M{
		"project_id": bson.M{"$in": projectIDs},
		"priority":   priority,
	})
}

func (tr *TaskRepo) CountOverdueInProjects(ctx context.Context, projectIDs []string, now time.Time) (int64, error) {
	if len(projectIDs) == 0 {
		return 0, nil
	}
	return tr.collection().CountDocuments(ctx, bson.M{
		"project_id": bson.M{"$in": projectIDs},
		"deadline":   bson.M{"$lt": now},
		"status":     bson.M{"$ne": models.StatusCompleted},
	})
}
