package http

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
	"github.com/vovakirdan/wiredraw-server/internal/store"
)

// chatTimeLayout matches what browsers produce for Date.toJSON.
const chatTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func badRequest(format string, args ...any) *proto.Error {
	return &proto.Error{Code: proto.ErrCodeBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func decodeData[T any](env proto.Envelope) (T, *proto.Error) {
	var v T
	if len(env.Data) == 0 {
		return v, badRequest("%s: missing data", env.Event)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, badRequest("%s: invalid data", env.Event)
	}
	return v, nil
}

// inboundToCommand maps a client envelope to a core command.
func inboundToCommand(env proto.Envelope) (*core.Command, *proto.Error) {
	switch env.Event {
	case proto.EventJoinSession:
		data, perr := decodeData[proto.JoinSessionData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandJoinSession, Room: data.RoomID}, nil

	case proto.EventDraw:
		data, perr := decodeData[proto.DrawData](env)
		if perr != nil {
			return nil, perr
		}
		if data.Stroke == nil {
			return nil, badRequest("draw: missing stroke")
		}
		stroke := strokeFromProto(*data.Stroke)
		return &core.Command{Kind: core.CommandDraw, Room: data.RoomID, Stroke: &stroke}, nil

	case proto.EventDrawingStatus:
		data, perr := decodeData[proto.DrawingStatusData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandDrawingStatus, Room: data.RoomID, Flag: data.IsDrawing}, nil

	case proto.EventTypingStatus:
		data, perr := decodeData[proto.TypingStatusData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandTypingStatus, Room: data.RoomID, Flag: data.IsTyping}, nil

	case proto.EventChatMessage:
		data, perr := decodeData[proto.ChatMessageData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandChatMessage, Room: data.RoomID, Text: data.Message}, nil

	case proto.EventClearCanvas:
		// The payload is the bare room id; an object with roomId is accepted too.
		roomID, perr := decodeData[string](env)
		if perr != nil {
			obj, objErr := decodeData[proto.JoinSessionData](env)
			if objErr != nil {
				return nil, perr
			}
			roomID = obj.RoomID
		}
		return &core.Command{Kind: core.CommandClearCanvas, Room: roomID}, nil

	case proto.EventRenameUser:
		data, perr := decodeData[proto.RenameUserData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandRenameUser, Room: data.RoomID, Text: data.NewName}, nil

	case proto.EventChangeColor:
		data, perr := decodeData[proto.ChangeColorData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandChangeColor, Room: data.RoomID, Text: data.NewColor}, nil

	case proto.EventChangeEmoji:
		data, perr := decodeData[proto.ChangeEmojiData](env)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandChangeEmoji, Room: data.RoomID, Text: data.NewEmoji}, nil

	default:
		return nil, &proto.Error{Code: proto.ErrCodeUnknownEvent, Msg: fmt.Sprintf("unknown event %q", env.Event)}
	}
}

// outboundFromEvent maps a core event to the client envelope.
func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventConnected:
		return proto.Outbound{Event: proto.EventConnected, Data: proto.ConnectedData{ID: ev.ConnID}}

	case core.EventSessionData:
		data := proto.SessionData{
			Strokes:     make([]proto.Stroke, 0, len(ev.Strokes)),
			ChatHistory: make([]proto.ChatMessage, 0, len(ev.ChatHistory)),
		}
		for _, s := range ev.Strokes {
			data.Strokes = append(data.Strokes, strokeToProto(s))
		}
		for _, m := range ev.ChatHistory {
			data.ChatHistory = append(data.ChatHistory, chatToProto(m))
		}
		return proto.Outbound{Event: proto.EventSessionData, Data: data}

	case core.EventUserList:
		users := make(map[string]proto.Presence, len(ev.Users))
		for id, p := range ev.Users {
			users[id] = proto.Presence{
				Username:  p.Username,
				Color:     p.Color,
				Emoji:     p.Emoji,
				IsDrawing: p.IsDrawing,
				IsTyping:  p.IsTyping,
			}
		}
		return proto.Outbound{Event: proto.EventUserList, Data: users}

	case core.EventDraw:
		return proto.Outbound{Event: proto.EventDraw, Data: strokeToProto(*ev.Stroke)}

	case core.EventChatMessage:
		return proto.Outbound{Event: proto.EventChatMessage, Data: chatToProto(*ev.Chat)}

	case core.EventCanvasCleared:
		return proto.Outbound{Event: proto.EventCanvasCleared}

	case core.EventHostChanged:
		return proto.Outbound{Event: proto.EventHostChanged, Data: proto.HostChangedData{RoomID: ev.Room, HostID: ev.HostID}}

	default:
		return proto.Outbound{Event: proto.EventError, Data: proto.Error{Code: proto.ErrCodeBadRequest, Msg: "unknown event"}}
	}
}

func strokeFromProto(s proto.Stroke) store.Stroke {
	return store.Stroke{
		Tool:   s.Tool,
		Color:  s.Color,
		Width:  s.Width,
		StartX: s.StartX,
		StartY: s.StartY,
		EndX:   s.EndX,
		EndY:   s.EndY,
	}
}

func strokeToProto(s store.Stroke) proto.Stroke {
	return proto.Stroke{
		Tool:   s.Tool,
		Color:  s.Color,
		Width:  s.Width,
		StartX: s.StartX,
		StartY: s.StartY,
		EndX:   s.EndX,
		EndY:   s.EndY,
	}
}

func chatToProto(m store.ChatMessage) proto.ChatMessage {
	return proto.ChatMessage{
		Username:  m.Username,
		Color:     m.Color,
		Message:   m.Message,
		CreatedAt: m.CreatedAt.UTC().Format(chatTimeLayout),
	}
}
