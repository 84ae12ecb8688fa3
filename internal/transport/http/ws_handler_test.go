package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
	"github.com/vovakirdan/wiredraw-server/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProvisionRedirectsToNewRoom(t *testing.T) {
	ts := startTestServer(t, nil)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.Regexp(t, `^/s/[0-9a-f]{8}$`, location)

	roomID := strings.TrimPrefix(location, "/s/")
	sess, err := ts.store.GetSession(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, core.NoHost, sess.HostID)

	page, err := client.Get(ts.URL + location)
	require.NoError(t, err)
	defer page.Body.Close()
	body, err := io.ReadAll(page.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, shellHTML, string(body))
}

func TestShellRejectsMalformedRoomID(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/s/bad%20room")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketSessionFlow(t *testing.T) {
	ts := startTestServer(t, nil)

	a := ts.dial(t)
	b := ts.dial(t)

	a.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r1"})
	var host proto.HostChangedData
	a.expect(proto.EventHostChanged, &host)
	assert.Equal(t, a.id, host.HostID)
	a.expect(proto.EventSessionData, nil)

	b.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r1"})
	var users map[string]proto.Presence
	b.expectWhere(proto.EventUserList, &users, userCount(2))
	b.expect(proto.EventSessionData, nil)
	a.expectWhere(proto.EventUserList, nil, userCount(2))
	bobName := users[b.id].Username

	s1 := proto.Stroke{Tool: "pen", Color: "#000000", Width: 2, StartX: 10, StartY: 10, EndX: 20, EndY: 25}
	a.send(proto.EventDraw, proto.DrawData{RoomID: "r1", Stroke: &s1})

	var drawn proto.Stroke
	b.expect(proto.EventDraw, &drawn)
	assert.Equal(t, s1, drawn)

	b.send(proto.EventChatMessage, proto.ChatMessageData{RoomID: "r1", Message: "hi"})

	var fromB, atA proto.ChatMessage
	b.expect(proto.EventChatMessage, &fromB)
	skipped := a.expect(proto.EventChatMessage, &atA)
	assert.NotContains(t, skipped, proto.EventDraw, "the drawer must not get its own stroke back")
	assert.Equal(t, fromB, atA)
	assert.Equal(t, "hi", atA.Message)
	assert.Equal(t, bobName, atA.Username)
	_, err := time.Parse(time.RFC3339, atA.CreatedAt)
	assert.NoError(t, err)

	a.conn.Close(websocket.StatusNormalClosure, "bye")

	b.expect(proto.EventHostChanged, &host)
	assert.Equal(t, b.id, host.HostID)
	b.expect(proto.EventUserList, &users)
	require.Len(t, users, 1)
	assert.Contains(t, users, b.id)

	require.Eventually(t, func() bool {
		sess, err := ts.store.GetSession(context.Background(), "r1")
		return err == nil && sess.HostID == b.id
	}, 2*time.Second, 10*time.Millisecond)

	c := ts.dial(t)
	c.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r1"})
	var session proto.SessionData
	c.expect(proto.EventSessionData, &session)
	assert.Equal(t, []proto.Stroke{s1}, session.Strokes)
	require.Len(t, session.ChatHistory, 1)
	assert.Equal(t, "hi", session.ChatHistory[0].Message)
	assert.Equal(t, bobName, session.ChatHistory[0].Username)
}

func TestWebSocketPresenceAndClear(t *testing.T) {
	ts := startTestServer(t, nil)

	a := ts.dial(t)
	b := ts.dial(t)
	a.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r2"})
	a.expect(proto.EventSessionData, nil)
	b.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r2"})
	b.expect(proto.EventSessionData, nil)

	b.send(proto.EventRenameUser, proto.RenameUserData{RoomID: "r2", NewName: "fourteenchars!"})
	var users map[string]proto.Presence
	a.expectWhere(proto.EventUserList, &users, func(raw json.RawMessage) bool {
		return strings.Contains(string(raw), "fourteench")
	})
	assert.Equal(t, "fourteench", users[b.id].Username)
	assert.Equal(t, core.DefaultEmoji, users[b.id].Emoji)

	b.send(proto.EventChangeEmoji, proto.ChangeEmojiData{RoomID: "r2", NewEmoji: "🦊"})
	b.send(proto.EventChangeColor, proto.ChangeColorData{RoomID: "r2", NewColor: "#ABCDEF"})
	a.expectWhere(proto.EventUserList, &users, func(raw json.RawMessage) bool {
		return strings.Contains(string(raw), "#ABCDEF")
	})
	assert.Equal(t, "🦊", users[b.id].Emoji)

	s := proto.Stroke{Tool: "eraser", Width: 5}
	a.send(proto.EventDraw, proto.DrawData{RoomID: "r2", Stroke: &s})
	b.expect(proto.EventDraw, nil)

	// Bare room id payload, sent by a member that is not the host.
	b.send(proto.EventClearCanvas, "r2")
	a.expect(proto.EventCanvasCleared, nil)
	b.expect(proto.EventCanvasCleared, nil)

	strokes, err := ts.store.ListStrokes(context.Background(), "r2")
	require.NoError(t, err)
	assert.Empty(t, strokes)
}

func TestWebSocketRejectsMalformedInput(t *testing.T) {
	ts := startTestServer(t, nil)
	c := ts.dial(t)

	var perr proto.Error
	c.send("bogus", map[string]string{})
	c.expect(proto.EventError, &perr)
	assert.Equal(t, proto.ErrCodeUnknownEvent, perr.Code)

	c.send(proto.EventJoinSession, "not-an-object")
	c.expect(proto.EventError, &perr)
	assert.Equal(t, proto.ErrCodeBadRequest, perr.Code)

	c.send(proto.EventDraw, proto.DrawData{RoomID: "r3"})
	c.expect(proto.EventError, &perr)
	assert.Equal(t, proto.ErrCodeBadRequest, perr.Code)

	// The connection survives bad frames.
	c.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r3"})
	c.expect(proto.EventSessionData, nil)
}

func TestWebSocketRateLimit(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.RateLimitPerMin = 2 })
	c := ts.dial(t)

	c.send(proto.EventJoinSession, proto.JoinSessionData{RoomID: "r4"})
	c.send(proto.EventTypingStatus, proto.TypingStatusData{RoomID: "r4", IsTyping: true})
	c.send(proto.EventTypingStatus, proto.TypingStatusData{RoomID: "r4", IsTyping: false})

	var perr proto.Error
	c.expect(proto.EventError, &perr)
	assert.Equal(t, proto.ErrCodeRateLimited, perr.Code)
}

func TestInboundToCommand(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  string
		want  *core.Command
		code  string
	}{
		{
			name:  "clear canvas with bare string",
			event: proto.EventClearCanvas,
			data:  `"abc"`,
			want:  &core.Command{Kind: core.CommandClearCanvas, Room: "abc"},
		},
		{
			name:  "clear canvas with object",
			event: proto.EventClearCanvas,
			data:  `{"roomId":"abc"}`,
			want:  &core.Command{Kind: core.CommandClearCanvas, Room: "abc"},
		},
		{
			name:  "drawing status",
			event: proto.EventDrawingStatus,
			data:  `{"roomId":"abc","isDrawing":true}`,
			want:  &core.Command{Kind: core.CommandDrawingStatus, Room: "abc", Flag: true},
		},
		{
			name:  "draw",
			event: proto.EventDraw,
			data:  `{"roomId":"abc","stroke":{"tool":"pen","color":"#fff","width":3,"startX":1,"startY":2,"endX":3,"endY":4}}`,
			want: &core.Command{Kind: core.CommandDraw, Room: "abc", Stroke: &store.Stroke{
				Tool: "pen", Color: "#fff", Width: 3, StartX: 1, StartY: 2, EndX: 3, EndY: 4,
			}},
		},
		{
			name:  "missing data",
			event: proto.EventChatMessage,
			code:  proto.ErrCodeBadRequest,
		},
		{
			name:  "unknown",
			event: "shout",
			data:  `{}`,
			code:  proto.ErrCodeUnknownEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := proto.Envelope{Event: tt.event}
			if tt.data != "" {
				env.Data = []byte(tt.data)
			}
			cmd, perr := inboundToCommand(env)
			if tt.code != "" {
				require.NotNil(t, perr)
				assert.Equal(t, tt.code, perr.Code)
				return
			}
			require.Nil(t, perr)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestRateLimiterWindows(t *testing.T) {
	var nilLimiter *rateLimiter
	assert.True(t, nilLimiter.allow())

	disabled := newRateLimiter(0)
	for range 10 {
		assert.True(t, disabled.allow())
	}

	now := time.Unix(1000, 0)
	limited := newRateLimiter(2)
	limited.now = func() time.Time { return now }
	assert.True(t, limited.allow())
	assert.True(t, limited.allow())
	assert.False(t, limited.allow())

	now = now.Add(rateWindow)
	assert.True(t, limited.allow(), "a new window resets the budget")
}
