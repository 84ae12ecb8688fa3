package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrMissingRoom   = errors.New("missing room id")
	ErrMissingStroke = errors.New("missing stroke")
	ErrInvalidStroke = errors.New("invalid stroke")
	ErrEmptyText     = errors.New("empty text")
	ErrInvalidColor  = errors.New("invalid color")
	ErrUnknownKind   = errors.New("unknown command kind")
)

// validate rejects commands that can never be applied.
// Membership and room existence are checked later, by the hub and the room.
func (cmd *Command) validate() error {
	if strings.TrimSpace(cmd.Room) == "" {
		return ErrMissingRoom
	}

	switch cmd.Kind {
	case CommandJoinSession, CommandDrawingStatus, CommandTypingStatus, CommandClearCanvas:
		return nil
	case CommandDraw:
		if cmd.Stroke == nil {
			return ErrMissingStroke
		}
		if strings.TrimSpace(cmd.Stroke.Tool) == "" || cmd.Stroke.Width <= 0 || math.IsInf(cmd.Stroke.Width, 1) {
			return ErrInvalidStroke
		}
	case CommandChatMessage, CommandRenameUser, CommandChangeEmoji:
		if strings.TrimSpace(cmd.Text) == "" {
			return ErrEmptyText
		}
	case CommandChangeColor:
		if !validColor(cmd.Text) {
			return fmt.Errorf("%w: %q", ErrInvalidColor, cmd.Text)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, cmd.Kind)
	}
	return nil
}
