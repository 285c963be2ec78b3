package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"taskflow/db"
	"taskflow/events"
	"taskflow/models"
	"taskflow/realtime"
	"taskflow/security"
)

type ProjectsHandler struct {
	logger   *log.Logger
	projects ProjectStore
	tasks    TaskStore
	hub      Broadcaster
	bus      EventPublisher
}

func NewProjectsHandler(logger *log.Logger, projects ProjectStore, tasks TaskStore, hub Broadcaster, bus EventPublisher) *ProjectsHandler {
	return &ProjectsHandler{logger: logger, projects: projects, tasks: tasks, hub: hub, bus: bus}
}

// GetProjects lists the caller's projects with task counters and populated
// owner/member references.
func (ph *ProjectsHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	userID := security.UserIDFromContext(r.Context())

	projects, err := ph.projects.ListForUser(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "projects": projects})
}

type createProjectRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline"`
	Priority    string     `json:"priority"`
	Color       string     `json:"color"`
	Members     []string   `json:"members"`
}

// CreateProject makes the caller the owner. The created project is
// broadcast to every connected session, not just a room: nobody has joined
// a room for a project that did not exist yet.
func (ph *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID := security.UserIDFromContext(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	project := models.Project{
		Title:       req.Title,
		Description: req.Description,
		Owner:       userID,
		Members:     req.Members,
		Priority:    req.Priority,
		Deadline:    req.Deadline,
		IsActive:    true,
		Color:       req.Color,
	}
	if err := ph.projects.Insert(r.Context(), &project); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summary, err := ph.projects.Summary(r.Context(), &project, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ph.hub.Broadcast(realtime.EventProjectCreated, summary)
	ph.bus.Publish(events.SubjectProjectCreated, events.ProjectEvent{
		ProjectID:  summary.ID,
		Title:      summary.Title,
		Owner:      userID,
		Members:    project.Members,
		OccurredAt: time.Now(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "project": summary})
}

// GetProject returns one populated project. Owner or member only.
func (ph *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	project, err := ph.projects.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !project.CanEdit(userID) {
		http.Error(w, "Not authorized", http.StatusForbidden)
		return
	}

	summary, err := ph.projects.Summary(r.Context(), project, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "project": summary})
}

// UpdateProject applies owner-only edits.
func (ph *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	project, err := ph.projects.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !project.IsOwner(userID) {
		http.Error(w, "Not authorized", http.StatusForbidden)
		return
	}

	var update models.ProjectUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := ph.projects.Update(r.Context(), id, update); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updated, err := ph.projects.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summary, err := ph.projects.Summary(r.Context(), updated, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ph.hub.Broadcast(realtime.EventProjectUpdated, summary)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "project": summary})
}

// DeleteProject removes the project and cascades to all of its tasks.
// Clients still holding the deleted project's tasks see them as orphans
// under the sentinel on the next all-tasks fetch.
func (ph *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	userID := security.UserIDFromContext(r.Context())

	project, err := ph.projects.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !project.IsOwner(userID) {
		http.Error(w, "Not authorized", http.StatusForbidden)
		return
	}

	deleted, err := ph.tasks.DeleteByProject(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := ph.projects.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	ph.logger.Printf("deleted project %s and %d tasks", id, deleted)

	ph.hub.Broadcast(realtime.EventProjectDeleted, map[string]string{"id": id})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "Project deleted"})
}

// GetProjectStats returns the per-status breakdown for the project header.
func (ph *ProjectsHandler) GetProjectStats(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	stats, err := ph.projects.Stats(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "stats": stats})
}
