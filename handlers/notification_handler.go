package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"taskflow/notifications"
	"taskflow/security"
)

// NotificationReader is the Cassandra repo surface used by the feed
// endpoint.
type NotificationReader interface {
	ByUser(userID string) ([]notifications.Notification, error)
}

type NotificationsHandler struct {
	logger *log.Logger
	repo   NotificationReader
}

func NewNotificationsHandler(logger *log.Logger, repo NotificationReader) *NotificationsHandler {
	return &NotificationsHandler{logger: logger, repo: repo}
}

// GetNotifications returns the caller's notification feed, newest first.
func (nh *NotificationsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	if nh.repo == nil {
		http.Error(w, "Notifications are not available", http.StatusServiceUnavailable)
		return
	}

	userID := security.UserIDFromContext(r.Context())
	feed, err := nh.repo.ByUser(userID)
	if err != nil {
		nh.logger.Println("failed to fetch notifications:", err)
		http.Error(w, "Unable to fetch notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "notifications": feed})
}
