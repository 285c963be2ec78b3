package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"taskflow/db"
	"taskflow/events"
	"taskflow/models"
	"taskflow/realtime"
	"taskflow/security"
)

const maxAttachmentSize = 10 << 20 // 10 MB

type TasksHandler struct {
	logger   *log.Logger
	tasks    TaskStore
	projects ProjectStore
	hub      Broadcaster
	bus      EventPublisher
	files    FileStore
}

func NewTasksHandler(logger *log.Logger, tasks TaskStore, projects ProjectStore, hub Broadcaster, bus EventPublisher, files FileStore) *TasksHandler {
	return &TasksHandler{logger: logger, tasks: tasks, projects: projects, hub: hub, bus: bus, files: files}
}

// GetTasks returns the populated tasks of one project, with optional
// status/priority/search filters.
func (th *TasksHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["projectId"]

	filter := models.TaskFilter{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
		Search:   r.URL.Query().Get("search"),
	}

	tasks, err := th.tasks.ListByProject(r.Context(), projectID, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "tasks": tasks})
}

// GetAllUserTasks returns every task across the caller's projects. Orphaned
// tasks are presented under the deleted-project sentinel rather than
// dropped.
func (th *TasksHandler) GetAllUserTasks(w http.ResponseWriter, r *http.Request) {
	userID := security.UserIDFromContext(r.Context())

	projectIDs, err := th.projects.IDsForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tasks, err := th.tasks.ListForUser(r.Context(), projectIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "tasks": tasks})
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	AssignedTo  string     `json:"assigned_to"`
	Order       int        `json:"order"`
}

// CreateTask creates a task inside a project. Owner and members may create;
// anyone else is rejected before any write.
func (th *TasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	projectID := vars["projectId"]
	userID := security.UserIDFromContext(r.Context())

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	project, err := th.projects.GetByID(r.Context(), projectID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !project.CanEdit(userID) {
		http.Error(w, "Not authorized to add tasks to this project", http.StatusForbidden)
		return
	}

	if req.Status == "" {
		req.Status = models.StatusTodo
	}
	if !models.ValidTaskStatus(req.Status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   projectID,
		Priority:    req.Priority,
		Status:      req.Status,
		Deadline:    req.Deadline,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   userID,
		Order:       req.Order,
	}
	if err := th.tasks.Insert(r.Context(), &task); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	details, err := th.tasks.Details(r.Context(), task.ID.Hex())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	th.hub.Publish(projectID, realtime.EventTaskCreated, details)
	th.bus.Publish(events.SubjectTaskCreated, events.TaskEvent{
		TaskID:     details.ID,
		ProjectID:  projectID,
		Title:      details.Title,
		Status:     details.Status,
		Actor:      userID,
		AssignedTo: task.AssignedTo,
		OccurredAt: time.Now(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "task": details})
}

// UpdateTask applies a general field edit. Owner and members may edit,
// including the status field; the dedicated status-transition path below is
// the one reserved to the owner.
func (th *TasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	var update models.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if update.Status != nil && !models.ValidTaskStatus(*update.Status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}
	if update.Priority != nil && !models.ValidPriority(*update.Priority) {
		http.Error(w, "Invalid priority", http.StatusBadRequest)
		return
	}

	task, err := th.tasks.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	project, err := th.projects.GetByID(r.Context(), task.ProjectID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Associated project not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !project.CanEdit(userID) {
		http.Error(w, "Not authorized to edit tasks in this project", http.StatusForbidden)
		return
	}

	if err := th.tasks.Update(r.Context(), id, update); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	details, err := th.tasks.Details(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	th.hub.Publish(task.ProjectID, realtime.EventTaskUpdated, details)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "task": details})
}

// UpdateTaskStatus is the drag-and-drop transition path. Unlike general
// edits, only the project owner may move a task between columns; a member
// (even the assignee) gets 403. Any status is reachable from any other.
//
// On success the populated task is published to the project room right
// after the write, in the same request, so every viewer of the board
// (including the initiator) converges on the persisted state. The publish
// is best-effort; its failure never affects the response.
func (th *TasksHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if !models.ValidTaskStatus(req.Status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	task, err := th.tasks.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	project, err := th.projects.GetByID(r.Context(), task.ProjectID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Associated project not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !project.IsOwner(userID) {
		http.Error(w, "Forbidden: only the project owner can change the task status", http.StatusForbidden)
		return
	}

	if err := th.tasks.UpdateStatus(r.Context(), id, req.Status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	details, err := th.tasks.Details(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	th.hub.Publish(task.ProjectID, realtime.EventTaskStatusUpdated, details)
	th.bus.Publish(events.SubjectTaskStatus, events.TaskEvent{
		TaskID:     details.ID,
		ProjectID:  task.ProjectID,
		Title:      details.Title,
		Status:     details.Status,
		Actor:      userID,
		AssignedTo: task.AssignedTo,
		OccurredAt: time.Now(),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "task": details})
}

// DeleteTask removes a task and its stored attachments.
func (th *TasksHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	task, err := th.tasks.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	project, err := th.projects.GetByID(r.Context(), task.ProjectID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		// Orphaned task: no project left to authorize against, any
		// authenticated caller may clean it up.
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	case !project.CanEdit(userID):
		http.Error(w, "Not authorized to delete tasks in this project", http.StatusForbidden)
		return
	}

	if err := th.tasks.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if th.files != nil {
		if err := th.files.DeleteTaskFiles(id); err != nil {
			th.logger.Println("failed to delete task attachments:", err)
		}
	}

	th.hub.Publish(task.ProjectID, realtime.EventTaskDeleted, map[string]interface{}{
		"id":      id,
		"project": task.ProjectID,
		"title":   task.Title,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "Task deleted"})
}

// UploadAttachment stores a multipart file for the task and appends its
// metadata to the task record.
func (th *TasksHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	task, err := th.tasks.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	project, err := th.projects.GetByID(r.Context(), task.ProjectID)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	case !project.CanEdit(userID):
		http.Error(w, "Not authorized to modify tasks in this project", http.StatusForbidden)
		return
	}

	if th.files == nil {
		http.Error(w, "File storage is not available", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentSize)
	if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
		http.Error(w, "Invalid multipart payload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	storedName := uuid.NewString() + filepath.Ext(header.Filename)
	path, err := th.files.Save(id, storedName, file)
	if err != nil {
		th.logger.Println("attachment write failed:", err)
		http.Error(w, "Failed to store attachment", http.StatusInternalServerError)
		return
	}

	attachment := models.Attachment{
		Filename:     storedName,
		OriginalName: header.Filename,
		Path:         path,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         header.Size,
	}
	if err := th.tasks.AddAttachment(r.Context(), id, attachment); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	details, err := th.tasks.Details(r.Context(), id)
	if err == nil {
		th.hub.Publish(task.ProjectID, realtime.EventTaskAttachmentAdded, details)
	} else {
		th.logger.Println(fmt.Sprintf("cannot load task %s after attachment: %v", id, err))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "attachment": attachment})
}
