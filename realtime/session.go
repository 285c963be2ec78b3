package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Inbound signal names a client may send over its connection. Both carry a
// project ID and need no acknowledgement.
const (
	signalJoinProject  = "join_project"
	signalLeaveProject = "leave_project"
)

// Session is one connected websocket client. The read pump turns join/leave
// frames into hub subscriptions; the write pump drains the send queue.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin from the SPA host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers the session with the hub.
func ServeWS(hub *Hub, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Println("websocket upgrade failed:", err)
			return
		}
		session := &Session{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 32),
		}
		hub.register(session)

		go session.writePump()
		go session.readPump(logger)
	}
}

func (s *Session) readPump(logger *log.Logger) {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Println("websocket read error:", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Println("ignoring malformed frame:", err)
			continue
		}
		var projectID string
		if err := json.Unmarshal(msg.Data, &projectID); err != nil {
			logger.Println("ignoring frame with bad project id:", err)
			continue
		}
		switch msg.Event {
		case signalJoinProject:
			s.hub.join(s, projectID)
		case signalLeaveProject:
			s.hub.leave(s, projectID)
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
