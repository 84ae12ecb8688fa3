package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3000/ws", "WebSocket address")
	room := flag.String("room", "smoke", "room id to join")
	name := flag.String("name", "smoke", "display name to set after joining")
	text := flag.String("text", "hello from smoke test", "chat message to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(event string, data any) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Envelope{Event: event, Data: raw}); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
		return nil
	}

	if err := send(proto.EventJoinSession, proto.JoinSessionData{RoomID: *room}); err != nil {
		return err
	}
	if err := send(proto.EventRenameUser, proto.RenameUserData{RoomID: *room, NewName: *name}); err != nil {
		return err
	}
	stroke := proto.Stroke{Tool: "pen", Color: "#000000", Width: 2, StartX: 0, StartY: 0, EndX: 100, EndY: 100}
	if err := send(proto.EventDraw, proto.DrawData{RoomID: *room, Stroke: &stroke}); err != nil {
		return err
	}
	if err := send(proto.EventChatMessage, proto.ChatMessageData{RoomID: *room, Message: *text}); err != nil {
		return err
	}

	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received event=%s\n", env.Event)

		switch env.Event {
		case proto.EventConnected:
			var data proto.ConnectedData
			if err := json.Unmarshal(env.Data, &data); err == nil {
				fmt.Printf("Connected: id=%s\n", data.ID)
			}
		case proto.EventSessionData:
			var data proto.SessionData
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return fmt.Errorf("unmarshal session data: %w", err)
			}
			fmt.Printf("History: strokes=%d chat=%d\n", len(data.Strokes), len(data.ChatHistory))
		case proto.EventUserList:
			var users map[string]proto.Presence
			if err := json.Unmarshal(env.Data, &users); err == nil {
				fmt.Printf("Users: %d online\n", len(users))
			}
		case proto.EventError:
			var perr proto.Error
			if err := json.Unmarshal(env.Data, &perr); err == nil {
				fmt.Printf("Error: code=%s msg=%s\n", perr.Code, perr.Msg)
			}
		case proto.EventChatMessage:
			var msg proto.ChatMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				fmt.Printf("Raw data: %s\n", string(env.Data))
				return fmt.Errorf("unmarshal chat message: %w", err)
			}
			fmt.Printf("Chat: user=%s text=%q at=%s\n", msg.Username, msg.Message, msg.CreatedAt)
			return nil
		}
	}
}
