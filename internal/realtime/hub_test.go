package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeAccess struct {
	canAccessFn func(ctx context.Context, boardID, userID string) (bool, error)
}

func (f *fakeAccess) CanAccess(ctx context.Context, boardID, userID string) (bool, error) {
	if f.canAccessFn != nil {
		return f.canAccessFn(ctx, boardID, userID)
	}
	return true, nil
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		hub.ServeWS(w, r, userID, "user-"+userID)
	}))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

func joinBoard(t *testing.T, conn *websocket.Conn, boardID string) {
	t.Helper()
	if err := conn.WriteJSON(Event{Type: EventJoinBoard, BoardID: boardID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	event := readEvent(t, conn)
	if event.Type != EventJoined {
		t.Fatalf("expected %s, got %s", EventJoined, event.Type)
	}
}

func TestRelayReachesRoomButNotSender(t *testing.T) {
	hub := NewHub(&fakeAccess{})
	server := newTestServer(t, hub)

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")
	joinBoard(t, alice, "board-1")
	joinBoard(t, bob, "board-1")

	// Alice sees Bob come online.
	if event := readEvent(t, alice); event.Type != EventUserOnline {
		t.Fatalf("expected %s, got %s", EventUserOnline, event.Type)
	}

	payload, _ := json.Marshal(map[string]string{"id": "task-1", "title": "Ship"})
	if err := alice.WriteJSON(Event{Type: EventTaskCreated, BoardID: "board-1", Payload: payload}); err != nil {
		t.Fatalf("write: %v", err)
	}

	event := readEvent(t, bob)
	if event.Type != EventTaskCreated {
		t.Fatalf("expected %s, got %s", EventTaskCreated, event.Type)
	}
	var task map[string]string
	if err := json.Unmarshal(event.Payload, &task); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if task["id"] != "task-1" {
		t.Fatalf("expected task-1, got %q", task["id"])
	}

	// The sender must not receive its own mutation back.
	_ = alice.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var echoed Event
	if err := alice.ReadJSON(&echoed); err == nil {
		t.Fatalf("expected no echo to sender, got %s", echoed.Type)
	}
}

func TestJoinDeniedForNonMember(t *testing.T) {
	hub := NewHub(&fakeAccess{
		canAccessFn: func(_ context.Context, boardID, userID string) (bool, error) {
			return false, nil
		},
	})
	server := newTestServer(t, hub)

	intruder := dial(t, server, "mallory")
	if err := intruder.WriteJSON(Event{Type: EventJoinBoard, BoardID: "board-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	event := readEvent(t, intruder)
	if event.Type != EventError {
		t.Fatalf("expected %s, got %s", EventError, event.Type)
	}
	if hub.RoomSize("board-1") != 0 {
		t.Fatalf("expected empty room after denied join, got %d", hub.RoomSize("board-1"))
	}
}

func TestRelayRequiresJoinFirst(t *testing.T) {
	hub := NewHub(&fakeAccess{})
	server := newTestServer(t, hub)

	conn := dial(t, server, "alice")
	if err := conn.WriteJSON(Event{Type: EventTaskUpdated, BoardID: "board-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	event := readEvent(t, conn)
	if event.Type != EventError {
		t.Fatalf("expected %s for un-joined relay, got %s", EventError, event.Type)
	}
}

func TestServerBroadcastReachesRoom(t *testing.T) {
	hub := NewHub(&fakeAccess{})
	server := newTestServer(t, hub)

	conn := dial(t, server, "alice")
	joinBoard(t, conn, "board-1")

	payload, _ := json.Marshal(map[string]string{"listId": "list-1"})
	hub.Broadcast("board-1", Event{Type: EventListDeleted, BoardID: "board-1", Payload: payload})

	event := readEvent(t, conn)
	if event.Type != EventListDeleted {
		t.Fatalf("expected %s, got %s", EventListDeleted, event.Type)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(&fakeAccess{})
	server := newTestServer(t, hub)

	conn := dial(t, server, "alice")
	joinBoard(t, conn, "board-1")

	if err := conn.WriteJSON(Event{Type: EventLeaveBoard, BoardID: "board-1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.RoomSize("board-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected empty room after leave, got %d", hub.RoomSize("board-1"))
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast("board-1", Event{Type: EventTaskUpdated, BoardID: "board-1"})
	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var event Event
	if err := conn.ReadJSON(&event); err == nil {
		t.Fatalf("expected no delivery after leave, got %s", event.Type)
	}
}
