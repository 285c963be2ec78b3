package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"taskflow/models"
	"taskflow/security"
)

type DashboardHandler struct {
	logger   *log.Logger
	projects ProjectStatsStore
	tasks    TaskStatsStore
}

func NewDashboardHandler(logger *log.Logger, projects ProjectStatsStore, tasks TaskStatsStore) *DashboardHandler {
	return &DashboardHandler{logger: logger, projects: projects, tasks: tasks}
}

// GetStats returns the caller's project and task counters for the landing
// dashboard.
func (dh *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := security.UserIDFromContext(ctx)

	projectIDs, err := dh.projects.IDsForUser(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	totalTasks, err := dh.tasks.CountInProjects(ctx, projectIDs, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	completedTasks, err := dh.tasks.CountInProjects(ctx, projectIDs, models.StatusCompleted)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	inProgressTasks, err := dh.tasks.CountInProjects(ctx, projectIDs, models.StatusInProgress)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"stats": map[string]int64{
			"totalProjects":   int64(len(projectIDs)),
			"totalTasks":      totalTasks,
			"completedTasks":  completedTasks,
			"inProgressTasks": inProgressTasks,
		},
	})
}
