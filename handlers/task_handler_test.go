package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow/db"
	"taskflow/models"
	"taskflow/realtime"
	"taskflow/security"
)

type fakeTaskStore struct {
	tasks     map[string]*models.Task
	statusErr error
	setStatus []string
}

func (f *fakeTaskStore) Insert(ctx context.Context, task *models.Task) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	if f.tasks == nil {
		f.tasks = map[string]*models.Task{}
	}
	f.tasks[task.ID.Hex()] = task
	return nil
}

func (f *fakeTaskStore) GetByID(ctx context.Context, id string) (*models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) Details(ctx context.Context, id string) (*models.TaskDetails, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &models.TaskDetails{
		ID:        id,
		Title:     task.Title,
		ProjectID: task.ProjectID,
		Status:    task.Status,
		Priority:  task.Priority,
	}, nil
}

func (f *fakeTaskStore) Update(ctx context.Context, id string, update models.TaskUpdate) error {
	task, ok := f.tasks[id]
	if !ok {
		return db.ErrNotFound
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Title != nil {
		task.Title = *update.Title
	}
	return nil
}

func (f *fakeTaskStore) UpdateStatus(ctx context.Context, id string, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	task, ok := f.tasks[id]
	if !ok {
		return db.ErrNotFound
	}
	task.Status = status
	f.setStatus = append(f.setStatus, id+":"+status)
	return nil
}

func (f *fakeTaskStore) AddAttachment(ctx context.Context, id string, attachment models.Attachment) error {
	task, ok := f.tasks[id]
	if !ok {
		return db.ErrNotFound
	}
	task.Attachments = append(task.Attachments, attachment)
	return nil
}

func (f *fakeTaskStore) Delete(ctx context.Context, id string) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskStore) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	var removed int64
	for id, task := range f.tasks {
		if task.ProjectID == projectID {
			delete(f.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeTaskStore) ListByProject(ctx context.Context, projectID string, filter models.TaskFilter) ([]models.TaskDetails, error) {
	var out []models.TaskDetails
	for id, task := range f.tasks {
		if task.ProjectID != projectID {
			continue
		}
		details, _ := f.Details(ctx, id)
		out = append(out, *details)
	}
	return out, nil
}

func (f *fakeTaskStore) ListForUser(ctx context.Context, projectIDs []string) ([]models.UserTask, error) {
	return nil, nil
}

type fakeProjectStore struct {
	projects map[string]*models.Project
	getErr   error
}

func (f *fakeProjectStore) Insert(ctx context.Context, project *models.Project) error {
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	if f.projects == nil {
		f.projects = map[string]*models.Project{}
	}
	f.projects[project.ID.Hex()] = project
	return nil
}

func (f *fakeProjectStore) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	project, ok := f.projects[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *project
	return &copied, nil
}

func (f *fakeProjectStore) Update(ctx context.Context, id string, update models.ProjectUpdate) error {
	if _, ok := f.projects[id]; !ok {
		return db.ErrNotFound
	}
	return nil
}

func (f *fakeProjectStore) Delete(ctx context.Context, id string) error {
	delete(f.projects, id)
	return nil
}

func (f *fakeProjectStore) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for id, project := range f.projects {
		if project.CanEdit(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeProjectStore) ListForUser(ctx context.Context, userID string) ([]models.ProjectSummary, error) {
	return nil, nil
}

func (f *fakeProjectStore) Summary(ctx context.Context, project *models.Project, refs map[string]models.UserRef) (*models.ProjectSummary, error) {
	return &models.ProjectSummary{ID: project.ID.Hex(), Title: project.Title}, nil
}

func (f *fakeProjectStore) Stats(ctx context.Context, projectID string) (*models.ProjectStats, error) {
	return &models.ProjectStats{}, nil
}

type publishedEvent struct {
	room  string
	event string
}

type fakeBroadcaster struct {
	published []publishedEvent
}

func (f *fakeBroadcaster) Publish(projectID, event string, payload interface{}) {
	f.published = append(f.published, publishedEvent{room: projectID, event: event})
}

func (f *fakeBroadcaster) Broadcast(event string, payload interface{}) {
	f.published = append(f.published, publishedEvent{room: "", event: event})
}

type fakeBus struct {
	subjects []string
}

func (f *fakeBus) Publish(subject string, payload interface{}) {
	f.subjects = append(f.subjects, subject)
}

type fakeFileStore struct {
	saved []string
}

func (f *fakeFileStore) Save(taskID, storedName string, content io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", err
	}
	f.saved = append(f.saved, taskID+"/"+storedName)
	return "/attachments/" + taskID + "/" + storedName, nil
}

func (f *fakeFileStore) DeleteTaskFiles(taskID string) error {
	return nil
}

type statusFixture struct {
	handler  *TasksHandler
	tasks    *fakeTaskStore
	projects *fakeProjectStore
	hub      *fakeBroadcaster
	bus      *fakeBus
	files    *fakeFileStore

	ownerID  string
	memberID string
	taskID   string
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()

	ownerID := primitive.NewObjectID().Hex()
	memberID := primitive.NewObjectID().Hex()

	projects := &fakeProjectStore{}
	project := &models.Project{Title: "Launch", Owner: ownerID, Members: []string{memberID}}
	require.NoError(t, projects.Insert(context.Background(), project))

	tasks := &fakeTaskStore{}
	task := &models.Task{
		Title:      "Fix login",
		ProjectID:  project.ID.Hex(),
		Status:     models.StatusTodo,
		Priority:   models.PriorityMedium,
		AssignedTo: memberID,
		CreatedBy:  ownerID,
	}
	require.NoError(t, tasks.Insert(context.Background(), task))

	hub := &fakeBroadcaster{}
	bus := &fakeBus{}
	files := &fakeFileStore{}
	logger := log.New(io.Discard, "", 0)

	return &statusFixture{
		handler:  NewTasksHandler(logger, tasks, projects, hub, bus, files),
		tasks:    tasks,
		projects: projects,
		hub:      hub,
		bus:      bus,
		files:    files,
		ownerID:  ownerID,
		memberID: memberID,
		taskID:   task.ID.Hex(),
	}
}

func statusRequest(taskID, userID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+taskID+"/status", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": taskID})
	return req.WithContext(security.ContextWithUser(req.Context(), userID, models.RoleUser))
}

func TestUpdateTaskStatusByOwner(t *testing.T) {
	fx := newStatusFixture(t)

	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, fx.ownerID, `{"status":"completed"}`))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool               `json:"success"`
		Task    models.TaskDetails `json:"task"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusCompleted, resp.Task.Status)

	assert.Equal(t, []string{fx.taskID + ":completed"}, fx.tasks.setStatus)
	require.Len(t, fx.hub.published, 1)
	assert.Equal(t, realtime.EventTaskStatusUpdated, fx.hub.published[0].event)
	assert.Equal(t, fx.tasks.tasks[fx.taskID].ProjectID, fx.hub.published[0].room)
	assert.Equal(t, []string{"taskflow.tasks.status"}, fx.bus.subjects)
}

func TestUpdateTaskStatusByMemberIsForbidden(t *testing.T) {
	fx := newStatusFixture(t)

	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, fx.memberID, `{"status":"completed"}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "only the project owner")

	// The rejection happens before any write or publish.
	assert.Equal(t, models.StatusTodo, fx.tasks.tasks[fx.taskID].Status)
	assert.Empty(t, fx.hub.published)
	assert.Empty(t, fx.bus.subjects)
}

func TestUpdateTaskStatusByStrangerIsForbidden(t *testing.T) {
	fx := newStatusFixture(t)

	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, primitive.NewObjectID().Hex(), `{"status":"completed"}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, fx.hub.published)
}

func TestUpdateTaskStatusUnknownTask(t *testing.T) {
	fx := newStatusFixture(t)

	missing := primitive.NewObjectID().Hex()
	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(missing, fx.ownerID, `{"status":"completed"}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Task not found")
}

func TestUpdateTaskStatusOrphanedTask(t *testing.T) {
	fx := newStatusFixture(t)

	// Point the task at a project that no longer exists.
	fx.tasks.tasks[fx.taskID].ProjectID = primitive.NewObjectID().Hex()

	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, fx.ownerID, `{"status":"completed"}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Associated project not found")
}

func TestUpdateTaskStatusInvalidStatus(t *testing.T) {
	fx := newStatusFixture(t)

	for _, body := range []string{`{"status":"done"}`, `{"status":""}`, `{`} {
		rec := httptest.NewRecorder()
		fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, fx.ownerID, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Empty(t, fx.hub.published)
}

func TestUpdateTaskStatusStoreFailure(t *testing.T) {
	fx := newStatusFixture(t)
	fx.tasks.statusErr = errors.New("write concern timeout")

	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, fx.ownerID, `{"status":"completed"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, fx.hub.published)
	assert.Empty(t, fx.bus.subjects)
}

func TestUpdateTaskStatusAnyTransitionAllowed(t *testing.T) {
	fx := newStatusFixture(t)

	// No workflow ordering: completed back to todo is a legal single hop.
	fx.tasks.tasks[fx.taskID].Status = models.StatusCompleted

	rec := httptest.NewRecorder()
	fx.handler.UpdateTaskStatus(rec, statusRequest(fx.taskID, fx.ownerID, `{"status":"todo"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusTodo, fx.tasks.tasks[fx.taskID].Status)
}

func createTaskRequestFor(projectID, userID string, payload map[string]interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tasks/project/"+projectID, bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"projectId": projectID})
	return req.WithContext(security.ContextWithUser(req.Context(), userID, models.RoleUser))
}

func TestCreateTaskByMember(t *testing.T) {
	fx := newStatusFixture(t)
	projectID := fx.tasks.tasks[fx.taskID].ProjectID

	rec := httptest.NewRecorder()
	deadline := time.Now().Add(48 * time.Hour).UTC()
	fx.handler.CreateTask(rec, createTaskRequestFor(projectID, fx.memberID, map[string]interface{}{
		"title":    "Review PR",
		"priority": models.PriorityHigh,
		"deadline": deadline,
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, fx.hub.published, 1)
	assert.Equal(t, realtime.EventTaskCreated, fx.hub.published[0].event)
	assert.Equal(t, projectID, fx.hub.published[0].room)
	assert.Equal(t, []string{"taskflow.tasks.created"}, fx.bus.subjects)
}

func TestCreateTaskByStrangerIsForbidden(t *testing.T) {
	fx := newStatusFixture(t)
	projectID := fx.tasks.tasks[fx.taskID].ProjectID

	rec := httptest.NewRecorder()
	fx.handler.CreateTask(rec, createTaskRequestFor(projectID, primitive.NewObjectID().Hex(), map[string]interface{}{
		"title": "Sneaky task",
	}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, fx.tasks.tasks, 1)
	assert.Empty(t, fx.hub.published)
}

func TestDeleteTaskPublishesRoomEvent(t *testing.T) {
	fx := newStatusFixture(t)
	projectID := fx.tasks.tasks[fx.taskID].ProjectID

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+fx.taskID, nil)
	req = mux.SetURLVars(req, map[string]string{"id": fx.taskID})
	req = req.WithContext(security.ContextWithUser(req.Context(), fx.ownerID, models.RoleUser))

	rec := httptest.NewRecorder()
	fx.handler.DeleteTask(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fx.tasks.tasks)
	require.Len(t, fx.hub.published, 1)
	assert.Equal(t, realtime.EventTaskDeleted, fx.hub.published[0].event)
	assert.Equal(t, projectID, fx.hub.published[0].room)
}

func TestUploadAttachmentWithoutFileStore(t *testing.T) {
	fx := newStatusFixture(t)
	handler := NewTasksHandler(log.New(io.Discard, "", 0), fx.tasks, fx.projects, fx.hub, fx.bus, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+fx.taskID+"/upload", nil)
	req = mux.SetURLVars(req, map[string]string{"id": fx.taskID})
	req = req.WithContext(security.ContextWithUser(req.Context(), fx.ownerID, models.RoleUser))

	rec := httptest.NewRecorder()
	handler.UploadAttachment(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteTaskProjectLookupFailure(t *testing.T) {
	fx := newStatusFixture(t)
	fx.projects.getErr = errors.New("connection reset by peer")

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+fx.taskID, nil)
	req = mux.SetURLVars(req, map[string]string{"id": fx.taskID})
	req = req.WithContext(security.ContextWithUser(req.Context(), primitive.NewObjectID().Hex(), models.RoleUser))

	rec := httptest.NewRecorder()
	fx.handler.DeleteTask(rec, req)

	// A failed membership lookup must fail the request, not skip the gate.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, fx.tasks.tasks, 1)
	assert.Empty(t, fx.hub.published)
}

func TestDeleteTaskOrphanAllowed(t *testing.T) {
	fx := newStatusFixture(t)
	fx.tasks.tasks[fx.taskID].ProjectID = primitive.NewObjectID().Hex()

	req := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+fx.taskID, nil)
	req = mux.SetURLVars(req, map[string]string{"id": fx.taskID})
	req = req.WithContext(security.ContextWithUser(req.Context(), primitive.NewObjectID().Hex(), models.RoleUser))

	rec := httptest.NewRecorder()
	fx.handler.DeleteTask(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fx.tasks.tasks)
}

func uploadRequest(t *testing.T, taskID, userID string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+taskID+"/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req = mux.SetURLVars(req, map[string]string{"id": taskID})
	return req.WithContext(security.ContextWithUser(req.Context(), userID, models.RoleUser))
}

func TestUploadAttachmentProjectLookupFailure(t *testing.T) {
	fx := newStatusFixture(t)
	fx.projects.getErr = errors.New("connection reset by peer")

	rec := httptest.NewRecorder()
	fx.handler.UploadAttachment(rec, uploadRequest(t, fx.taskID, primitive.NewObjectID().Hex(), []byte("hello")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, fx.files.saved)
	assert.Empty(t, fx.tasks.tasks[fx.taskID].Attachments)
}

func TestUploadAttachmentStoresFile(t *testing.T) {
	fx := newStatusFixture(t)

	rec := httptest.NewRecorder()
	fx.handler.UploadAttachment(rec, uploadRequest(t, fx.taskID, fx.memberID, []byte("hello")))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fx.files.saved, 1)
	require.Len(t, fx.tasks.tasks[fx.taskID].Attachments, 1)
	assert.Equal(t, "notes.txt", fx.tasks.tasks[fx.taskID].Attachments[0].OriginalName)
	require.Len(t, fx.hub.published, 1)
	assert.Equal(t, realtime.EventTaskAttachmentAdded, fx.hub.published[0].event)
}

func TestUploadAttachmentTooLarge(t *testing.T) {
	fx := newStatusFixture(t)

	oversized := bytes.Repeat([]byte("a"), maxAttachmentSize+1)
	rec := httptest.NewRecorder()
	fx.handler.UploadAttachment(rec, uploadRequest(t, fx.taskID, fx.ownerID, oversized))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fx.files.saved)
	assert.Empty(t, fx.tasks.tasks[fx.taskID].Attachments)
}
