package core

import "github.com/vovakirdan/wiredraw-server/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinSession registers the client in a room, creating the room if needed.
	CommandJoinSession CommandKind = iota
	// CommandDraw appends a stroke to the room canvas.
	CommandDraw
	// CommandDrawingStatus toggles the isDrawing flag.
	CommandDrawingStatus
	// CommandTypingStatus toggles the isTyping flag.
	CommandTypingStatus
	// CommandChatMessage sends a chat line to the room.
	CommandChatMessage
	// CommandClearCanvas wipes the room stroke history.
	CommandClearCanvas
	// CommandRenameUser changes the display name.
	CommandRenameUser
	// CommandChangeColor changes the display color.
	CommandChangeColor
	// CommandChangeEmoji changes the display emoji.
	CommandChangeEmoji

	// commandLeave is issued by the hub when a client disconnects.
	commandLeave
)

// Command represents an action requested by a client.
type Command struct {
	Kind   CommandKind
	Room   string
	Stroke *store.Stroke
	Text   string // chat message, new name, new color or new emoji
	Flag   bool   // isDrawing or isTyping
}
