package realtime

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(log.New(io.Discard, "", 0))
	go h.Run()
	t.Cleanup(h.Shutdown)
	return h
}

func newTestSession(queue int) *Session {
	return &Session{send: make(chan []byte, queue)}
}

func recvFrame(t *testing.T, s *Session) Message {
	t.Helper()
	select {
	case payload, ok := <-s.send:
		require.True(t, ok, "session queue closed unexpectedly")
		var msg Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return Message{}
	}
}

func TestPublishIsScopedToRoom(t *testing.T) {
	h := newTestHub(t)

	boardViewer := newTestSession(8)
	otherViewer := newTestSession(8)
	h.register(boardViewer)
	h.register(otherViewer)
	h.join(boardViewer, "p1")
	h.join(otherViewer, "p2")

	h.Publish("p1", EventTaskStatusUpdated, map[string]string{"id": "t1"})
	h.Publish("p2", EventTaskCreated, map[string]string{"id": "t2"})

	assert.Equal(t, EventTaskStatusUpdated, recvFrame(t, boardViewer).Event)
	// The other viewer's first frame is its own room's event, proving the p1
	// publish never reached it.
	assert.Equal(t, EventTaskCreated, recvFrame(t, otherViewer).Event)
}

func TestPublishReachesEveryRoomMember(t *testing.T) {
	h := newTestHub(t)

	initiator := newTestSession(8)
	watcher := newTestSession(8)
	h.register(initiator)
	h.register(watcher)
	h.join(initiator, "p1")
	h.join(watcher, "p1")

	h.Publish("p1", EventTaskStatusUpdated, map[string]string{"id": "t1", "status": "completed"})

	// The initiating session is not exempted from its own event.
	initiatorMsg := recvFrame(t, initiator)
	watcherMsg := recvFrame(t, watcher)
	assert.Equal(t, EventTaskStatusUpdated, initiatorMsg.Event)
	assert.Equal(t, EventTaskStatusUpdated, watcherMsg.Event)
	assert.JSONEq(t, string(initiatorMsg.Data), string(watcherMsg.Data))
}

func TestLeaveStopsDelivery(t *testing.T) {
	h := newTestHub(t)

	s := newTestSession(8)
	h.register(s)
	h.join(s, "p1")

	h.Publish("p1", EventTaskUpdated, map[string]string{"id": "t1"})
	assert.Equal(t, EventTaskUpdated, recvFrame(t, s).Event)

	h.leave(s, "p1")
	h.Publish("p1", EventTaskUpdated, map[string]string{"id": "t2"})
	h.Broadcast(EventProjectCreated, map[string]string{"id": "marker"})

	// The broadcast arrives first because the room publish was skipped.
	assert.Equal(t, EventProjectCreated, recvFrame(t, s).Event)
}

func TestDuplicateJoinDeliversOnce(t *testing.T) {
	h := newTestHub(t)

	s := newTestSession(8)
	h.register(s)
	h.join(s, "p1")
	h.join(s, "p1")

	h.Publish("p1", EventTaskUpdated, map[string]string{"id": "t1"})
	h.Broadcast(EventProjectCreated, map[string]string{"id": "marker"})

	assert.Equal(t, EventTaskUpdated, recvFrame(t, s).Event)
	assert.Equal(t, EventProjectCreated, recvFrame(t, s).Event)
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	h := newTestHub(t)

	inRoom := newTestSession(8)
	roomless := newTestSession(8)
	h.register(inRoom)
	h.register(roomless)
	h.join(inRoom, "p1")

	h.Broadcast(EventProjectCreated, map[string]string{"id": "p9"})

	assert.Equal(t, EventProjectCreated, recvFrame(t, inRoom).Event)
	assert.Equal(t, EventProjectCreated, recvFrame(t, roomless).Event)
}

func TestSlowSessionIsDropped(t *testing.T) {
	h := newTestHub(t)

	s := newTestSession(1)
	h.register(s)
	h.join(s, "p1")

	h.Publish("p1", EventTaskUpdated, map[string]string{"id": "t1"})
	h.Publish("p1", EventTaskUpdated, map[string]string{"id": "t2"})

	// The first frame fills the queue; the second overflows it and the hub
	// drops the session, closing its queue behind the buffered frame.
	assert.Equal(t, EventTaskUpdated, recvFrame(t, s).Event)
	select {
	case _, ok := <-s.send:
		assert.False(t, ok, "expected the queue to be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("queue was not closed")
	}
}
