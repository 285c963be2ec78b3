package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"taskflow/models"
	"taskflow/realtime"
)

// Client talks to the taskflow server: REST for reads and mutations, a
// websocket for the room events. One Client serves one user session.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// TasksByProject fetches the populated task list for a board view.
func (c *Client) TasksByProject(projectID string) ([]models.TaskDetails, error) {
	var response struct {
		Success bool                 `json:"success"`
		Tasks   []models.TaskDetails `json:"tasks"`
	}
	if err := c.do(http.MethodGet, "/api/tasks/project/"+projectID, nil, &response); err != nil {
		return nil, err
	}
	return response.Tasks, nil
}

// UpdateTaskStatus issues the status transition. The server rejects callers
// that are not the project owner with 403, which surfaces here as an error
// and triggers the board rollback.
func (c *Client) UpdateTaskStatus(taskID, status string) (*models.TaskDetails, error) {
	var response struct {
		Success bool                `json:"success"`
		Task    *models.TaskDetails `json:"task"`
	}
	body := map[string]string{"status": status}
	if err := c.do(http.MethodPatch, "/api/tasks/"+taskID+"/status", body, &response); err != nil {
		return nil, err
	}
	return response.Task, nil
}

// ConnectRealtime dials the websocket endpoint.
func (c *Client) ConnectRealtime() error {
	wsURL, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) sendSignal(event, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("realtime connection is not established")
	}
	data, err := json.Marshal(projectID)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(realtime.Message{Event: event, Data: data})
}

// JoinProject subscribes this session to the project's room. Called when
// the project detail view opens.
func (c *Client) JoinProject(projectID string) error {
	return c.sendSignal("join_project", projectID)
}

// LeaveProject unsubscribes; called when the view closes, regardless of how
// the rest of the view teardown went.
func (c *Client) LeaveProject(projectID string) error {
	return c.sendSignal("leave_project", projectID)
}

// Listen consumes event frames until the connection drops and reconciles
// them into the board. A reconnecting caller must re-join its rooms and
// re-fetch the board; no missed events are replayed.
func (c *Client) Listen(board *Board) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("realtime connection is not established")
	}

	for {
		var msg realtime.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		switch msg.Event {
		case realtime.EventTaskStatusUpdated, realtime.EventTaskUpdated, realtime.EventTaskAttachmentAdded:
			var task models.TaskDetails
			if err := json.Unmarshal(msg.Data, &task); err != nil {
				continue
			}
			board.ApplyStatusEvent(task)
		case realtime.EventTaskDeleted:
			var deleted struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(msg.Data, &deleted); err != nil {
				continue
			}
			board.RemoveTask(deleted.ID)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
