package proto

import "encoding/json"

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

const (
	EventJoinSession   = "joinSession"
	EventSessionData   = "sessionData"
	EventUserList      = "userList"
	EventDraw          = "draw"
	EventDrawingStatus = "drawingStatus"
	EventTypingStatus  = "typingStatus"
	EventChatMessage   = "chatMessage"
	EventClearCanvas   = "clearCanvas"
	EventCanvasCleared = "canvasCleared"
	EventRenameUser    = "renameUser"
	EventChangeColor   = "changeColor"
	EventChangeEmoji   = "changeEmoji"
	EventHostChanged   = "hostChanged"
	EventConnected     = "connected"
	EventError         = "error"
)

// Error codes sent in error events.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnknownEvent = "unknown_event"
	ErrCodeRateLimited  = "rate_limited"
)

// JoinSessionData requests to join a room.
type JoinSessionData struct {
	RoomID string `json:"roomId"`
}

// DrawData carries a stroke drawn by the client.
type DrawData struct {
	RoomID string  `json:"roomId"`
	Stroke *Stroke `json:"stroke"`
}

// DrawingStatusData toggles the drawing indicator.
type DrawingStatusData struct {
	RoomID    string `json:"roomId"`
	IsDrawing bool   `json:"isDrawing"`
}

// TypingStatusData toggles the typing indicator.
type TypingStatusData struct {
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// ChatMessageData is a chat line from the client.
type ChatMessageData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// RenameUserData changes the display name.
type RenameUserData struct {
	RoomID  string `json:"roomId"`
	NewName string `json:"newName"`
}

// ChangeColorData changes the display color.
type ChangeColorData struct {
	RoomID   string `json:"roomId"`
	NewColor string `json:"newColor"`
}

// ChangeEmojiData changes the display emoji.
type ChangeEmojiData struct {
	RoomID   string `json:"roomId"`
	NewEmoji string `json:"newEmoji"`
}

// Stroke is one line segment on the wire.
type Stroke struct {
	Tool   string  `json:"tool"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	StartX float64 `json:"startX"`
	StartY float64 `json:"startY"`
	EndX   float64 `json:"endX"`
	EndY   float64 `json:"endY"`
}

// Presence is one entry of the userList map.
type Presence struct {
	Username  string `json:"username"`
	Color     string `json:"color"`
	Emoji     string `json:"emoji"`
	IsDrawing bool   `json:"isDrawing"`
	IsTyping  bool   `json:"isTyping"`
}

// ChatMessage is a chat line as delivered to clients.
type ChatMessage struct {
	Username  string `json:"user_name"`
	Color     string `json:"color"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// SessionData is the one-time history replay sent on join.
type SessionData struct {
	Strokes     []Stroke      `json:"strokes"`
	ChatHistory []ChatMessage `json:"chatHistory"`
}

// HostChangedData announces the current room host.
type HostChangedData struct {
	RoomID string `json:"roomId"`
	HostID string `json:"hostId"`
}

// ConnectedData tells a client its own connection id.
type ConnectedData struct {
	ID string `json:"id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
