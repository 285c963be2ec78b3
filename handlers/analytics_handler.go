package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"taskflow/models"
	"taskflow/security"
)

type AnalyticsHandler struct {
	logger   *log.Logger
	projects ProjectStatsStore
	tasks    TaskStatsStore
}

func NewAnalyticsHandler(logger *log.Logger, projects ProjectStatsStore, tasks TaskStatsStore) *AnalyticsHandler {
	return &AnalyticsHandler{logger: logger, projects: projects, tasks: tasks}
}

// GetOverview aggregates the caller's tasks by status and priority plus the
// overdue count, across every project they own or belong to.
func (ah *AnalyticsHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := security.UserIDFromContext(ctx)

	projectIDs, err := ah.projects.IDsForUser(ctx, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	byStatus := map[string]int64{}
	for _, status := range []string{models.StatusTodo, models.StatusInProgress, models.StatusCompleted} {
		count, err := ah.tasks.CountInProjects(ctx, projectIDs, status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		byStatus[status] = count
	}

	byPriority := map[string]int64{}
	for _, priority := range []string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh} {
		count, err := ah.tasks.CountByPriorityInProjects(ctx, projectIDs, priority)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		byPriority[priority] = count
	}

	overdue, err := ah.tasks.CountOverdueInProjects(ctx, projectIDs, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"analytics": map[string]interface{}{
			"totalProjects": len(projectIDs),
			"byStatus":      byStatus,
			"byPriority":    byPriority,
			"overdueTasks":  overdue,
		},
	})
}
