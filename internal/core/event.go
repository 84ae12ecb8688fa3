package core

import "github.com/vovakirdan/wiredraw-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventConnected tells a client its own connection id.
	EventConnected EventKind = iota
	// EventSessionData delivers the persisted history once per join.
	EventSessionData
	// EventUserList carries the full presence map of a room.
	EventUserList
	// EventDraw carries a stroke drawn by another member.
	EventDraw
	// EventChatMessage carries a chat line.
	EventChatMessage
	// EventCanvasCleared tells members to drop their stroke history.
	EventCanvasCleared
	// EventHostChanged announces the current host of a room.
	EventHostChanged
)

// Event is sent to clients to describe what happened in a room.
// Events are shared between recipients and must be treated as read-only.
type Event struct {
	Kind        EventKind
	Room        string
	ConnID      string
	HostID      string
	Users       map[string]Presence
	Stroke      *store.Stroke
	Chat        *store.ChatMessage
	Strokes     []store.Stroke
	ChatHistory []store.ChatMessage
}
