// Package realtime implements the per-project broadcast rooms. A room is an
// ephemeral, process-local subscriber set keyed by project ID: it is created
// on first join, dropped when empty, and lost wholesale on restart. Clients
// that reconnect must re-join and re-fetch; the hub keeps no queue of missed
// events.
package realtime

import (
	"encoding/json"
	"log"
)

// Event names delivered to room subscribers. Task events are scoped to the
// task's project room; project events go to every connected session.
const (
	EventTaskCreated         = "task_created"
	EventTaskUpdated         = "task_updated"
	EventTaskStatusUpdated   = "task_status_updated"
	EventTaskDeleted         = "task_deleted"
	EventTaskAttachmentAdded = "task_attachment_added"
	EventProjectCreated      = "project_created"
	EventProjectUpdated      = "project_updated"
	EventProjectDeleted      = "project_deleted"
)

// Message is the wire frame in both directions. For inbound join/leave
// frames Data holds a JSON string with the project ID; for outbound event
// frames it holds the full payload object.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type subscription struct {
	session   *Session
	projectID string
}

type envelope struct {
	room    string // empty means every connected session
	payload []byte
}

// Hub owns all room state. Every mutation of the session and room maps
// happens on the single Run goroutine; join/leave/publish communicate with
// it over channels, so no locking is needed.
//
// Joining performs no authorization check: any connected session may join
// any project room. Project membership is enforced only on the HTTP
// endpoints, not on room subscription.
type Hub struct {
	logger *log.Logger

	registerCh   chan *Session
	unregisterCh chan *Session
	joinCh       chan subscription
	leaveCh      chan subscription
	publishCh    chan envelope

	sessions map[*Session]struct{}
	rooms    map[string]map[*Session]struct{}

	quit chan struct{}
	done chan struct{}
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:       logger,
		registerCh:   make(chan *Session),
		unregisterCh: make(chan *Session),
		joinCh:       make(chan subscription),
		leaveCh:      make(chan subscription),
		publishCh:    make(chan envelope, 64),
		sessions:     make(map[*Session]struct{}),
		rooms:        make(map[string]map[*Session]struct{}),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Run dispatches until Shutdown. It is the only goroutine allowed to touch
// the session and room maps.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case s := <-h.registerCh:
			h.sessions[s] = struct{}{}
		case s := <-h.unregisterCh:
			h.drop(s)
		case sub := <-h.joinCh:
			if _, ok := h.sessions[sub.session]; !ok {
				continue
			}
			room := h.rooms[sub.projectID]
			if room == nil {
				room = make(map[*Session]struct{})
				h.rooms[sub.projectID] = room
			}
			room[sub.session] = struct{}{}
		case sub := <-h.leaveCh:
			if room, ok := h.rooms[sub.projectID]; ok {
				delete(room, sub.session)
				if len(room) == 0 {
					delete(h.rooms, sub.projectID)
				}
			}
		case env := <-h.publishCh:
			h.deliver(env)
		case <-h.quit:
			for s := range h.sessions {
				h.drop(s)
			}
			return
		}
	}
}

func (h *Hub) deliver(env envelope) {
	if env.room == "" {
		for s := range h.sessions {
			h.send(s, env.payload)
		}
		return
	}
	for s := range h.rooms[env.room] {
		h.send(s, env.payload)
	}
}

// send is at-most-once: a session whose queue is full is dropped rather
// than blocked on, so one slow consumer cannot stall the dispatch loop.
func (h *Hub) send(s *Session, payload []byte) {
	select {
	case s.send <- payload:
	default:
		h.logger.Println("dropping slow session")
		h.drop(s)
	}
}

func (h *Hub) drop(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	for projectID, room := range h.rooms {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, projectID)
		}
	}
	close(s.send)
}

// Shutdown stops the dispatch loop and closes every session queue.
func (h *Hub) Shutdown() {
	close(h.quit)
	<-h.done
}

func (h *Hub) register(s *Session) {
	select {
	case h.registerCh <- s:
	case <-h.quit:
	}
}

func (h *Hub) unregister(s *Session) {
	select {
	case h.unregisterCh <- s:
	case <-h.quit:
	}
}

func (h *Hub) join(s *Session, projectID string) {
	if projectID == "" {
		return
	}
	select {
	case h.joinCh <- subscription{session: s, projectID: projectID}:
	case <-h.quit:
	}
}

func (h *Hub) leave(s *Session, projectID string) {
	if projectID == "" {
		return
	}
	select {
	case h.leaveCh <- subscription{session: s, projectID: projectID}:
	case <-h.quit:
	}
}

// Publish delivers an event to every session currently joined to the
// project's room, the originator included. Delivery is best-effort: failures
// are never reported back to the caller, whose HTTP response already carries
// the authoritative result.
func (h *Hub) Publish(projectID, event string, payload interface{}) {
	if projectID == "" {
		return
	}
	frame, err := h.frame(event, payload)
	if err != nil {
		return
	}
	select {
	case h.publishCh <- envelope{room: projectID, payload: frame}:
	case <-h.quit:
	}
}

// Broadcast delivers an event to every connected session regardless of room
// membership; used for platform-wide events such as project creation.
func (h *Hub) Broadcast(event string, payload interface{}) {
	frame, err := h.frame(event, payload)
	if err != nil {
		return
	}
	select {
	case h.publishCh <- envelope{room: "", payload: frame}:
	case <-h.quit:
	}
}

func (h *Hub) frame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Println("cannot marshal event payload:", err)
		return nil, err
	}
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.logger.Println("cannot marshal event frame:", err)
		return nil, err
	}
	return frame, nil
}
