package core

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/store"
)

const eventTimeout = 2 * time.Second

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	return mustEventWhere(t, ch, kind, func(*Event) bool { return true })
}

// mustEventWhere skips events until one of the given kind satisfies match.
func mustEventWhere(t *testing.T, ch <-chan *Event, kind EventKind, match func(*Event) bool) *Event {
	t.Helper()

	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind && match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

// drainUntil returns every event read up to and including the first one of kind.
func drainUntil(t *testing.T, ch <-chan *Event, kind EventKind) []*Event {
	t.Helper()

	var seen []*Event
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev := <-ch:
			seen = append(seen, ev)
			if ev.Kind == kind {
				return seen
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return nil
		}
	}
}

func usersWithCount(n int) func(*Event) bool {
	return func(ev *Event) bool { return len(ev.Users) == n }
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(substr string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), substr)
}

type testHub struct {
	*Hub
	store *fakeStore
	logs  *syncBuffer
}

func startHub(t *testing.T, opts Options) *testHub {
	t.Helper()

	logs := &syncBuffer{}
	logger := zerolog.New(logs).Level(zerolog.DebugLevel)
	opts.Logger = &logger

	st := newFakeStore()
	hub := NewHub(st, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})

	return &testHub{Hub: hub, store: st, logs: logs}
}

// connect registers a client and consumes its connected event.
func (h *testHub) connect(t *testing.T, id string) *Client {
	t.Helper()

	c := NewClient(id)
	h.RegisterClient(c)
	ev := mustEvent(t, c.Events, EventConnected)
	if ev.ConnID != id {
		t.Fatalf("unexpected connected id %q", ev.ConnID)
	}
	return c
}

// join sends joinSession and waits for the userList that includes the client.
func (h *testHub) join(t *testing.T, c *Client, room string) *Event {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinSession, Room: room}
	return mustEventWhere(t, c.Events, EventUserList, func(ev *Event) bool {
		_, ok := ev.Users[c.ID]
		return ok
	})
}

type fakeStore struct {
	mu sync.Mutex

	sessions      map[string]string
	sessionWrites map[string]int
	strokes       map[string][]store.Stroke
	chat          map[string][]store.ChatMessage
	deletes       map[string]int

	strokeErr error
	chatErr   error
	deleteErr error
	listErr   error

	// deleteGate, when set, holds DeleteStrokes until it is closed.
	deleteGate    chan struct{}
	deleteStarted chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:      make(map[string]string),
		sessionWrites: make(map[string]int),
		strokes:       make(map[string][]store.Stroke),
		chat:          make(map[string][]store.ChatMessage),
		deletes:       make(map[string]int),
	}
}

func (s *fakeStore) CreateOrUpdateSession(_ context.Context, roomID, hostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[roomID] = hostID
	s.sessionWrites[roomID]++
	return nil
}

func (s *fakeStore) GetSession(_ context.Context, roomID string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host, ok := s.sessions[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Session{RoomID: roomID, HostID: host}, nil
}

func (s *fakeStore) AppendStroke(_ context.Context, roomID string, stroke store.Stroke) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.strokeErr != nil {
		return s.strokeErr
	}
	s.strokes[roomID] = append(s.strokes[roomID], stroke)
	return nil
}

func (s *fakeStore) ListStrokes(_ context.Context, roomID string) ([]store.Stroke, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]store.Stroke{}, s.strokes[roomID]...), nil
}

func (s *fakeStore) DeleteStrokes(_ context.Context, roomID string) error {
	s.mu.Lock()
	gate, started := s.deleteGate, s.deleteStarted
	s.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.strokes, roomID)
	s.deletes[roomID]++
	return nil
}

func (s *fakeStore) AppendChatMessage(_ context.Context, roomID string, msg store.ChatMessage) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatErr != nil {
		return time.Time{}, s.chatErr
	}
	s.chat[roomID] = append(s.chat[roomID], msg)
	return msg.CreatedAt, nil
}

func (s *fakeStore) ListChatMessages(_ context.Context, roomID string) ([]store.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]store.ChatMessage{}, s.chat[roomID]...), nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) sessionHost(roomID string) (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[roomID], s.sessionWrites[roomID]
}

func (s *fakeStore) strokeCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strokes[roomID])
}

func (s *fakeStore) deleteCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes[roomID]
}

// holdDeletes makes DeleteStrokes block until release is called.
// started receives once per DeleteStrokes call that reached the gate.
func (s *fakeStore) holdDeletes() (started <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.deleteGate = gate
	s.deleteStarted = make(chan struct{}, 8)

	var once sync.Once
	return s.deleteStarted, func() { once.Do(func() { close(gate) }) }
}

func (s *fakeStore) setErrors(strokeErr, chatErr, deleteErr, listErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strokeErr, s.chatErr, s.deleteErr, s.listErr = strokeErr, chatErr, deleteErr, listErr
}
