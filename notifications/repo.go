// Package notifications persists per-user notification records in Cassandra
// and fills them from domain events arriving over NATS.
package notifications

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gocql/gocql"
)

type Notification struct {
	ID        gocql.UUID `json:"id"`
	UserID    string     `json:"user_id"`
	Message   string     `json:"message"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
}

// Repo encapsulates the Cassandra session for notifications.
type Repo struct {
	session *gocql.Session
	logger  *log.Logger
}

func New(logger *log.Logger) (*Repo, error) {
	db := os.Getenv("CASS_DB")
	if db == "" {
		return nil, fmt.Errorf("CASS_DB environment variable is not set")
	}

	cluster := gocql.NewCluster(db)
	cluster.Keyspace = "system"
	cluster.Consistency = gocql.One

	var session *gocql.Session
	var err error

	// Cassandra tends to come up after the app in local compose setups.
	for i := 0; i < 5; i++ {
		session, err = cluster.CreateSession()
		if err == nil {
			break
		}
		logger.Printf("attempt %d: failed to connect to Cassandra: %v", i+1, err)
		time.Sleep(10 * time.Second)
	}
	if err != nil {
		return nil, err
	}

	err = session.Query(`
		CREATE KEYSPACE IF NOT EXISTS taskflow
		WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}
	`).Exec()
	if err != nil {
		logger.Println("error creating keyspace:", err)
	}
	session.Close()

	cluster.Keyspace = "taskflow"
	session, err = cluster.CreateSession()
	if err != nil {
		return nil, err
	}

	return &Repo{session: session, logger: logger}, nil
}

func (r *Repo) CloseSession() {
	r.session.Close()
}

// CreateTables prepares the notifications table. user_id is text because
// identities come from Mongo object IDs, not UUIDs.
func (r *Repo) CreateTables() {
	err := r.session.Query(`
		CREATE TABLE IF NOT EXISTS notifications
		(id UUID, user_id text, message text, is_active boolean, created_at timestamp,
		PRIMARY KEY (user_id, created_at))
		WITH CLUSTERING ORDER BY (created_at DESC)
	`).Exec()
	if err != nil {
		r.logger.Println(err)
	}
}

func (r *Repo) Insert(notification *Notification) error {
	id, _ := gocql.RandomUUID()
	notification.ID = id
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	err := r.session.Query(
		`INSERT INTO notifications (id, user_id, message, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, notification.Message,
		notification.IsActive, notification.CreatedAt).Exec()
	if err != nil {
		r.logger.Println(err)
		return err
	}
	return nil
}

func (r *Repo) ByUser(userID string) ([]Notification, error) {
	scanner := r.session.Query(
		`SELECT id, user_id, message, is_active, created_at FROM notifications WHERE user_id = ?`,
		userID).Iter().Scanner()

	var notifications []Notification
	for scanner.Next() {
		var n Notification
		if err := scanner.Scan(&n.ID, &n.UserID, &n.Message, &n.IsActive, &n.CreatedAt); err != nil {
			r.logger.Println(err)
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Println(err)
		return nil, err
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	return notifications, nil
}
