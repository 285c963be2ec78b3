package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"taskflow/db"
	"taskflow/models"
	"taskflow/security"
)

// AdminHandler serves the platform-wide screens; every route behind it is
// gated on the admin role by the router.
type AdminHandler struct {
	logger   *log.Logger
	users    UserStore
	userStat UserStatsStore
	projects ProjectStatsStore
	tasks    TaskStatsStore
}

func NewAdminHandler(logger *log.Logger, users UserStore, userStat UserStatsStore, projects ProjectStatsStore, tasks TaskStatsStore) *AdminHandler {
	return &AdminHandler{logger: logger, users: users, userStat: userStat, projects: projects, tasks: tasks}
}

func (ah *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalUsers, err := ah.userStat.Count(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	totalProjects, err := ah.projects.Count(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	activeProjects, err := ah.projects.CountActive(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	totalTasks, err := ah.tasks.CountAll(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	completedTasks, err := ah.tasks.CountByStatus(ctx, models.StatusCompleted)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	overdueTasks, err := ah.tasks.CountOverdue(ctx, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"stats": map[string]int64{
			"totalUsers":     totalUsers,
			"totalProjects":  totalProjects,
			"activeProjects": activeProjects,
			"totalTasks":     totalTasks,
			"completedTasks": completedTasks,
			"overdueTasks":   overdueTasks,
		},
	})
}

func (ah *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := ah.users.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "users": users})
}

func (ah *AdminHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := ah.users.UpdateActive(r.Context(), id, req.IsActive)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "user": user})
}

func (ah *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if id == security.UserIDFromContext(r.Context()) {
		http.Error(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}

	err := ah.users.Delete(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "User deleted successfully"})
}

func (ah *AdminHandler) GetProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := ah.projects.ListAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "projects": projects})
}
