package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
	"github.com/vovakirdan/wiredraw-server/internal/store/sqlite"
)

const shellHTML = "<!doctype html><title>wiredraw</title>"

type testServer struct {
	*httptest.Server
	store *sqlite.SQLiteStore
}

// startTestServer runs the full router against an in-memory SQLite store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte(shellHTML), 0o600))

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.StaticDir = staticDir
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(st, core.Options{Logger: &logger, MaxChatLength: cfg.MaxChatLength})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, st, cfg, &logger)
	ts := httptest.NewServer(server.Handler)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-hub.Done()
		_ = st.Close()
	})

	return &testServer{Server: ts, store: st}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

// dial connects and consumes the connected event.
func (ts *testServer) dial(t *testing.T) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	c := &wsClient{t: t, conn: conn}
	var hello proto.ConnectedData
	c.expect(proto.EventConnected, &hello)
	c.id = hello.ID
	return c
}

func (c *wsClient) send(event string, data any) {
	c.t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(c.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(c.t, wsjson.Write(ctx, c.conn, proto.Envelope{Event: event, Data: raw}))
}

// expect reads until the named event arrives and decodes its data into out.
func (c *wsClient) expect(event string, out any) []string {
	c.t.Helper()
	return c.expectWhere(event, out, nil)
}

// expectWhere is expect with a predicate on the raw data; skipped event names are returned.
func (c *wsClient) expectWhere(event string, out any, match func(json.RawMessage) bool) []string {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var skipped []string
	for {
		var env proto.Envelope
		require.NoError(c.t, wsjson.Read(ctx, c.conn, &env), "waiting for %s", event)
		if env.Event == event && (match == nil || match(env.Data)) {
			if out != nil {
				require.NoError(c.t, json.Unmarshal(env.Data, out))
			}
			return skipped
		}
		skipped = append(skipped, env.Event)
	}
}

func userCount(n int) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var users map[string]proto.Presence
		return json.Unmarshal(raw, &users) == nil && len(users) == n
	}
}
