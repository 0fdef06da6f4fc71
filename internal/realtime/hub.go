// Package realtime relays board mutation events between websocket clients.
// Clients join one room per board; events published to a room reach every
// member except the sender, so a client never echoes its own mutation.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event is the wire format for every message after the upgrade, in both
// directions. BoardID routes the event to a room; Payload is opaque to
// the hub and forwarded untouched.
type Event struct {
	Type    string          `json:"type"`
	BoardID string          `json:"boardId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Control event types handled by the hub itself. Anything else is
// treated as a mutation event and relayed to the board room.
const (
	EventJoinBoard  = "join-board"
	EventLeaveBoard = "leave-board"
	EventJoined     = "joined-board"
	EventUserOnline = "user-online"
	EventUserAway   = "user-offline"
	EventError      = "error"
)

// AccessChecker reports whether a user may join a board room. Joins
// re-check membership so a revoked member cannot keep a live room
// subscription from an old page load.
type AccessChecker interface {
	CanAccess(ctx context.Context, boardID, userID string) (bool, error)
}

// Hub tracks connected clients and their board rooms.
type Hub struct {
	access AccessChecker

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub(access AccessChecker) *Hub {
	return &Hub{
		access: access,
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

// Broadcast sends an event to every client in the board's room. Used by
// the HTTP layer to fan out mutations made over REST.
func (h *Hub) Broadcast(boardID string, event Event) {
	h.broadcast(boardID, event, nil)
}

func (h *Hub) broadcast(boardID string, event Event, exclude *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[boardID] {
		if client == exclude {
			continue
		}
		client.send(event)
	}
}

// RoomSize reports how many clients are subscribed to a board.
func (h *Hub) RoomSize(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}

func (h *Hub) handleEvent(ctx context.Context, client *Client, event Event) {
	switch event.Type {
	case EventJoinBoard:
		h.join(ctx, client, event.BoardID)
	case EventLeaveBoard:
		h.leave(client, event.BoardID, true)
	default:
		h.relay(client, event)
	}
}

func (h *Hub) join(ctx context.Context, client *Client, boardID string) {
	if boardID == "" {
		client.send(Event{Type: EventError, Payload: errorPayload("board id is required")})
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	allowed, err := h.access.CanAccess(checkCtx, boardID, client.userID)
	if err != nil {
		log.Printf("realtime: access check for board %s: %v", boardID, err)
		client.send(Event{Type: EventError, BoardID: boardID, Payload: errorPayload("access check failed")})
		return
	}
	if !allowed {
		client.send(Event{Type: EventError, BoardID: boardID, Payload: errorPayload("access denied")})
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[boardID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[boardID] = room
	}
	room[client] = struct{}{}
	client.boards[boardID] = struct{}{}
	h.mu.Unlock()

	client.send(Event{Type: EventJoined, BoardID: boardID})
	h.broadcast(boardID, Event{Type: EventUserOnline, BoardID: boardID, Payload: presencePayload(client)}, client)
}

func (h *Hub) leave(client *Client, boardID string, notify bool) {
	h.mu.Lock()
	if room, ok := h.rooms[boardID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, boardID)
		}
	}
	delete(client.boards, boardID)
	h.mu.Unlock()

	if notify {
		h.broadcast(boardID, Event{Type: EventUserAway, BoardID: boardID, Payload: presencePayload(client)}, client)
	}
}

// relay forwards a mutation event to the rest of the room. The sender
// must have joined the room first; events for rooms the sender is not
// in are dropped with an error reply instead of trusting the client.
func (h *Hub) relay(sender *Client, event Event) {
	if event.BoardID == "" {
		sender.send(Event{Type: EventError, Payload: errorPayload("board id is required")})
		return
	}

	h.mu.RLock()
	_, joined := sender.boards[event.BoardID]
	h.mu.RUnlock()
	if !joined {
		sender.send(Event{Type: EventError, BoardID: event.BoardID, Payload: errorPayload("join the board first")})
		return
	}

	h.broadcast(event.BoardID, event, sender)
}

// disconnect drops the client from every room without a leave broadcast.
func (h *Hub) disconnect(client *Client) {
	h.mu.Lock()
	for boardID := range client.boards {
		if room, ok := h.rooms[boardID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, boardID)
			}
		}
	}
	client.boards = make(map[string]struct{})
	h.mu.Unlock()
}

func errorPayload(message string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"message": message})
	return raw
}

func presencePayload(client *Client) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"userId": client.userID, "username": client.username})
	return raw
}
