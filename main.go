package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/cors"

	"taskflow/bootstrap"
	"taskflow/db"
	"taskflow/events"
	"taskflow/handlers"
	"taskflow/models"
	"taskflow/notifications"
	"taskflow/realtime"
	"taskflow/security"
	"taskflow/storage"
)

func main() {
	godotenv.Load()

	port := os.Getenv("PORT")
	if len(port) == 0 {
		port = "8080"
	}

	logger := log.New(os.Stdout, "[taskflow-api] ", log.LstdFlags)
	storeLogger := log.New(os.Stdout, "[taskflow-store] ", log.LstdFlags)
	hubLogger := log.New(os.Stdout, "[taskflow-hub] ", log.LstdFlags)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := db.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Fatalf("Error connecting to MongoDB: %v", err)
	}
	defer db.Disconnect(context.TODO(), mongoClient)

	userRepo := db.NewUserRepo(mongoClient, storeLogger)
	taskRepo := db.NewTaskRepo(mongoClient, storeLogger)
	projectRepo := db.NewProjectRepo(mongoClient, storeLogger)

	bootstrap.InsertInitialData(context.TODO(), logger, userRepo, projectRepo, taskRepo)

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	nc, err := nats.Connect(natsURL)
	if err != nil {
		logger.Fatalf("Error connecting to NATS: %v", err)
	}
	defer nc.Close()
	bus := events.NewBus(nc, logger)

	// Cassandra-backed notifications are optional; without CASS_DB the feed
	// endpoint answers 503 and no worker is started.
	var notificationRepo *notifications.Repo
	if os.Getenv("CASS_DB") != "" {
		notificationRepo, err = notifications.New(storeLogger)
		if err != nil {
			logger.Fatalf("Failed to initialize Cassandra connection: %v", err)
		}
		defer notificationRepo.CloseSession()
		notificationRepo.CreateTables()

		worker := notifications.NewWorker(logger, notificationRepo)
		if err := worker.Subscribe(nc); err != nil {
			logger.Fatalf("Failed to subscribe notification worker: %v", err)
		}
	}

	// Same for HDFS: uploads answer 503 when no attachment store is wired.
	var fileStorage *storage.FileStorage
	if os.Getenv("HDFS_URI") != "" {
		fileStorage, err = storage.New(storeLogger)
		if err != nil {
			logger.Fatalf("Failed to initialize HDFS connection: %v", err)
		}
		defer fileStorage.Close()
		if err := fileStorage.CreateDirectories(); err != nil {
			logger.Fatalf("Failed to create HDFS directories: %v", err)
		}
	}

	hub := realtime.NewHub(hubLogger)
	go hub.Run()
	defer hub.Shutdown()

	usersHandler := handlers.NewUsersHandler(logger, userRepo)
	projectsHandler := handlers.NewProjectsHandler(logger, projectRepo, taskRepo, hub, bus)
	tasksHandler := newTasksHandler(logger, taskRepo, projectRepo, hub, bus, fileStorage)
	dashboardHandler := handlers.NewDashboardHandler(logger, projectRepo, taskRepo)
	analyticsHandler := handlers.NewAnalyticsHandler(logger, projectRepo, taskRepo)
	adminHandler := handlers.NewAdminHandler(logger, userRepo, userRepo, projectRepo, taskRepo)
	notificationsHandler := newNotificationsHandler(logger, notificationRepo)

	router := mux.NewRouter()
	router.HandleFunc("/api/health", healthHandler).Methods("GET")
	router.HandleFunc("/api/auth/register", usersHandler.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", usersHandler.Login).Methods("POST")
	router.HandleFunc("/ws", realtime.ServeWS(hub, hubLogger)).Methods("GET")

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(security.AuthMiddleware)
	authed.HandleFunc("/auth/profile", usersHandler.Profile).Methods("GET")
	authed.HandleFunc("/projects", projectsHandler.GetProjects).Methods("GET")
	authed.HandleFunc("/projects", projectsHandler.CreateProject).Methods("POST")
	authed.HandleFunc("/projects/{id}", projectsHandler.GetProject).Methods("GET")
	authed.HandleFunc("/projects/{id}", projectsHandler.UpdateProject).Methods("PUT")
	authed.HandleFunc("/projects/{id}", projectsHandler.DeleteProject).Methods("DELETE")
	authed.HandleFunc("/projects/{id}/stats", projectsHandler.GetProjectStats).Methods("GET")
	authed.HandleFunc("/tasks/all", tasksHandler.GetAllUserTasks).Methods("GET")
	authed.HandleFunc("/tasks/project/{projectId}", tasksHandler.GetTasks).Methods("GET")
	authed.HandleFunc("/tasks/project/{projectId}", tasksHandler.CreateTask).Methods("POST")
	authed.HandleFunc("/tasks/{id}", tasksHandler.UpdateTask).Methods("PUT")
	authed.HandleFunc("/tasks/{id}/status", tasksHandler.UpdateTaskStatus).Methods("PATCH")
	authed.HandleFunc("/tasks/{id}", tasksHandler.DeleteTask).Methods("DELETE")
	authed.HandleFunc("/tasks/{id}/upload", tasksHandler.UploadAttachment).Methods("POST")
	authed.HandleFunc("/dashboard/stats", dashboardHandler.GetStats).Methods("GET")
	authed.HandleFunc("/analytics/overview", analyticsHandler.GetOverview).Methods("GET")
	authed.HandleFunc("/notifications", notificationsHandler.GetNotifications).Methods("GET")

	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(security.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/stats", adminHandler.GetStats).Methods("GET")
	admin.HandleFunc("/users", adminHandler.GetUsers).Methods("GET")
	admin.HandleFunc("/users/{id}/status", adminHandler.UpdateUserStatus).Methods("PATCH")
	admin.HandleFunc("/users/{id}", adminHandler.DeleteUser).Methods("DELETE")
	admin.HandleFunc("/projects", adminHandler.GetProjects).Methods("GET")

	allowedOrigin := os.Getenv("CLIENT_ORIGIN")
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:5173"
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      c.Handler(gorillaHandlers.LoggingHandler(os.Stdout, router)),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("Starting server on port %s...\n", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Could not listen on port %s: %v\n", port, err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, os.Kill)

	sig := <-sigCh
	logger.Printf("Received signal %s, shutting down...\n", sig)

	timeoutContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(timeoutContext); err != nil {
		logger.Fatalf("Could not gracefully shutdown the server: %v\n", err)
	}
	logger.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// A nil *storage.FileStorage must become a nil interface, otherwise the
// handler's nil check never fires.
func newTasksHandler(logger *log.Logger, tasks *db.TaskRepo, projects *db.ProjectRepo, hub *realtime.Hub, bus *events.Bus, files *storage.FileStorage) *handlers.TasksHandler {
	var fileStore handlers.FileStore
	if files != nil {
		fileStore = files
	}
	return handlers.NewTasksHandler(logger, tasks, projects, hub, bus, fileStore)
}

func newNotificationsHandler(logger *log.Logger, repo *notifications.Repo) *handlers.NotificationsHandler {
	var reader handlers.NotificationReader
	if repo != nil {
		reader = repo
	}
	return handlers.NewNotificationsHandler(logger, reader)
}
