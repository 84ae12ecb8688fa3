package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is the durable record of a room.
// HostID is best effort: it goes stale as soon as the process restarts.
type Session struct {
	RoomID    string
	HostID    string
	CreatedAt time.Time
}

// Stroke is a single line segment drawn on the canvas.
type Stroke struct {
	Tool   string  `json:"tool"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	StartX float64 `json:"startX"`
	StartY float64 `json:"startY"`
	EndX   float64 `json:"endX"`
	EndY   float64 `json:"endY"`
}

// ChatMessage is a persisted chat line. Username and Color are captured at send time.
type ChatMessage struct {
	Username  string    `json:"user_name"`
	Color     string    `json:"color"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore handles session records.
type SessionStore interface {
	// CreateOrUpdateSession inserts the room's session record or replaces its host.
	CreateOrUpdateSession(ctx context.Context, roomID, hostID string) error

	// GetSession retrieves a session record by room id.
	GetSession(ctx context.Context, roomID string) (*Session, error)
}

// StrokeStore handles the append-only stroke history.
type StrokeStore interface {
	// AppendStroke appends a stroke to the room history.
	AppendStroke(ctx context.Context, roomID string, stroke Stroke) error

	// ListStrokes returns the room history ordered by creation time ascending.
	ListStrokes(ctx context.Context, roomID string) ([]Stroke, error)

	// DeleteStrokes removes the whole stroke history of a room.
	DeleteStrokes(ctx context.Context, roomID string) error
}

// ChatStore handles chat history.
type ChatStore interface {
	// AppendChatMessage persists a chat message and returns its creation timestamp.
	// A zero CreatedAt is replaced with the current time.
	AppendChatMessage(ctx context.Context, roomID string, msg ChatMessage) (time.Time, error)

	// ListChatMessages returns the room chat ordered by creation time ascending.
	ListChatMessages(ctx context.Context, roomID string) ([]ChatMessage, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	SessionStore
	StrokeStore
	ChatStore

	// Close closes the underlying connection.
	Close() error
}
