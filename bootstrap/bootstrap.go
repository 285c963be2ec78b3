// Package bootstrap seeds a fresh database with demo accounts and a sample
// board so a new deployment has something to click on.
package bootstrap

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskflow/db"
	"taskflow/models"
)

// InsertInitialData seeds users, one project and its tasks, but only when
// no users exist yet; an already populated database is left alone.
func InsertInitialData(ctx context.Context, logger *log.Logger, users *db.UserRepo, projects *db.ProjectRepo, tasks *db.TaskRepo) {
	count, err := users.Count(ctx)
	if err != nil {
		logger.Println("bootstrap: cannot count users:", err)
		return
	}
	if count > 0 {
		return
	}

	admin := seedUser(ctx, logger, users, "Admin", "admin@taskflow.local", "admin123", models.RoleAdmin)
	owner := seedUser(ctx, logger, users, "John Doe", "john.doe@example.com", "password1", models.RoleUser)
	member := seedUser(ctx, logger, users, "Jane Doe", "jane.doe@example.com", "password2", models.RoleUser)
	if admin == nil || owner == nil || member == nil {
		return
	}

	deadline := time.Now().AddDate(0, 1, 0)
	project := models.Project{
		Title:       "Launch",
		Description: "Product launch checklist",
		Owner:       owner.ID.Hex(),
		Members:     []string{member.ID.Hex()},
		Priority:    models.PriorityHigh,
		Deadline:    &deadline,
		IsActive:    true,
	}
	if err := projects.Insert(ctx, &project); err != nil {
		logger.Println("bootstrap: cannot insert project:", err)
		return
	}

	seedTasks := []models.Task{
		{Title: "Draft announcement", Status: models.StatusTodo, Priority: models.PriorityMedium, Order: 0},
		{Title: "Prepare release notes", Status: models.StatusInProgress, Priority: models.PriorityHigh, Order: 1},
		{Title: "Update website", Status: models.StatusCompleted, Priority: models.PriorityLow, Order: 2},
	}
	for i := range seedTasks {
		seedTasks[i].ProjectID = project.ID.Hex()
		seedTasks[i].CreatedBy = owner.ID.Hex()
		seedTasks[i].AssignedTo = member.ID.Hex()
		if err := tasks.Insert(ctx, &seedTasks[i]); err != nil {
			logger.Println("bootstrap: cannot insert task:", err)
		}
	}
	logger.Println("bootstrap: inserted demo users, project and tasks")
}

func seedUser(ctx context.Context, logger *log.Logger, users *db.UserRepo, name, email, password, role string) *models.User {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Println("bootstrap: cannot hash password:", err)
		return nil
	}
	user := models.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
		IsActive: true,
	}
	if err := users.Insert(ctx, &user); err != nil {
		logger.Println("bootstrap: cannot insert user:", err)
		return nil
	}
	return &user
}
