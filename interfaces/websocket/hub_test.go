package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schemacanvas-backend/domain/events"
)

func newTestHub(t *testing.T, forwarder Forwarder) *Hub {
	t.Helper()
	h := NewHub(forwarder, nil, zap.NewNop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// newTestClient builds a client without a network connection; tests read
// outbound frames straight from the send channel.
func newTestClient(h *Hub, userID, projectID string, buffer int) *Client {
	return &Client{
		id:        uuid.New().String(),
		userID:    userID,
		projectID: projectID,
		hub:       h,
		send:      make(chan []byte, buffer),
		logger:    zap.NewNop(),
	}
}

func join(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	before := h.RoomSize(c.projectID)
	h.register <- c
	waitForRoomSize(t, h, c.projectID, before+1)
}

func waitForRoomSize(t *testing.T, h *Hub, projectID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.RoomSize(projectID) == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d (have %d)", projectID, want, h.RoomSize(projectID))
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received in time")
		return nil
	}
}

func mutationFrame(t *testing.T, nodeID string) []byte {
	t.Helper()
	data := []byte(`{"type":"NODE_MOVED","projectId":"proj-1","actorId":"alice","timestamp":1700000000,"nodeId":"` + nodeID + `","position":{"x":10,"y":20}}`)
	_, err := events.Decode(data)
	require.NoError(t, err)
	return data
}

func TestRelayExcludesSender(t *testing.T) {
	h := newTestHub(t, nil)
	alice := newTestClient(h, "alice", "proj-1", 16)
	bob := newTestClient(h, "bob", "proj-1", 16)
	join(t, h, alice)
	join(t, h, bob)

	// Joining second, bob's presence frame reaches alice.
	joined := recv(t, alice)
	var presence presenceFrame
	require.NoError(t, json.Unmarshal(joined, &presence))
	assert.Equal(t, TypeRoomJoined, presence.Type)
	assert.Equal(t, "bob", presence.ActorID)

	frame := mutationFrame(t, "users")
	h.Relay(alice, frame)

	got := recv(t, bob)
	assert.Equal(t, frame, got, "recognized frames are forwarded byte for byte")
	assert.Empty(t, alice.send, "the sender never hears its own event back")
}

func TestRoomsAreIsolatedByProject(t *testing.T) {
	h := newTestHub(t, nil)
	alice := newTestClient(h, "alice", "proj-1", 16)
	bob := newTestClient(h, "bob", "proj-1", 16)
	carol := newTestClient(h, "carol", "proj-2", 16)
	join(t, h, alice)
	join(t, h, bob)
	join(t, h, carol)

	recv(t, alice) // bob's join

	h.Relay(alice, mutationFrame(t, "users"))
	recv(t, bob)

	assert.Empty(t, carol.send, "events never cross project rooms")
	assert.Equal(t, 2, h.RoomSize("proj-1"))
	assert.Equal(t, 1, h.RoomSize("proj-2"))
}

func TestRelayDropsUnknownEventTypes(t *testing.T) {
	h := newTestHub(t, nil)
	alice := newTestClient(h, "alice", "proj-1", 16)
	bob := newTestClient(h, "bob", "proj-1", 16)
	join(t, h, alice)
	join(t, h, bob)
	recv(t, alice)

	h.Relay(alice, []byte(`{"type":"NODE_EXPLODED","projectId":"proj-1","actorId":"alice","timestamp":1}`))
	h.Relay(alice, []byte(`not even json`))

	// A valid frame sent afterwards still goes through; the bad ones did not.
	h.Relay(alice, mutationFrame(t, "users"))
	got := recv(t, bob)
	assert.Contains(t, string(got), "NODE_MOVED")
	assert.Empty(t, bob.send)
}

func TestLeavingEmitsPresence(t *testing.T) {
	h := newTestHub(t, nil)
	alice := newTestClient(h, "alice", "proj-1", 16)
	bob := newTestClient(h, "bob", "proj-1", 16)
	join(t, h, alice)
	join(t, h, bob)
	recv(t, alice)

	h.unregister <- bob
	waitForRoomSize(t, h, "proj-1", 1)

	left := recv(t, alice)
	var presence presenceFrame
	require.NoError(t, json.Unmarshal(left, &presence))
	assert.Equal(t, TypeRoomLeft, presence.Type)
	assert.Equal(t, "bob", presence.ActorID)
}

func TestEmptyRoomIsRemoved(t *testing.T) {
	h := newTestHub(t, nil)
	alice := newTestClient(h, "alice", "proj-1", 16)
	join(t, h, alice)

	h.unregister <- alice
	waitForRoomSize(t, h, "proj-1", 0)
}

func TestSlowClientIsEvicted(t *testing.T) {
	h := newTestHub(t, nil)
	alice := newTestClient(h, "alice", "proj-1", 16)
	slow := newTestClient(h, "slow", "proj-1", 1)
	join(t, h, alice)
	join(t, h, slow)
	recv(t, alice)

	// Fill the slow client's buffer so the next fan-out cannot queue.
	slow.send <- []byte(`backlog`)
	h.Relay(alice, mutationFrame(t, "users"))

	waitForRoomSize(t, h, "proj-1", 1)
	assert.Equal(t, 16, cap(alice.send), "the healthy client stays")
}

type captureForwarder struct {
	mu    sync.Mutex
	kinds []string
}

func (f *captureForwarder) Forward(_ context.Context, m events.Mutation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, m.Kind())
}

func (f *captureForwarder) captured() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kinds...)
}

func TestRelayMirrorsToForwarder(t *testing.T) {
	fwd := &captureForwarder{}
	h := newTestHub(t, fwd)
	alice := newTestClient(h, "alice", "proj-1", 16)
	join(t, h, alice)

	h.Relay(alice, mutationFrame(t, "users"))
	h.Relay(alice, []byte(`{"type":"NODE_EXPLODED","projectId":"p","actorId":"a","timestamp":1}`))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(fwd.captured()) == 0 {
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, []string{"NODE_MOVED"}, fwd.captured(), "only recognized events reach the bus")
}

type stuckForwarder struct {
	release chan struct{}
}

func (f *stuckForwarder) Forward(_ context.Context, _ events.Mutation) {
	<-f.release
}

func TestStalledForwarderDoesNotBlockFanOut(t *testing.T) {
	fwd := &stuckForwarder{release: make(chan struct{})}
	defer close(fwd.release)

	h := newTestHub(t, fwd)
	alice := newTestClient(h, "alice", "proj-1", 16)
	bob := newTestClient(h, "bob", "proj-1", 16)
	join(t, h, alice)
	join(t, h, bob)
	recv(t, alice)

	// The mirror hangs; room peers must still receive the frame.
	frame := mutationFrame(t, "users")
	h.Relay(alice, frame)
	assert.Equal(t, frame, recv(t, bob))
}
