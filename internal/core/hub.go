package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/store"
)

const (
	hubInboxBuffer   = 256
	minSweepInterval = 10 * time.Millisecond
)

// Options tunes the hub. Zero values are replaced by defaults.
type Options struct {
	Logger *zerolog.Logger
	// RoomIdleTTL evicts rooms that stayed empty this long; 0 keeps rooms forever.
	RoomIdleTTL time.Duration
	// MaxChatLength truncates chat messages; 0 means no limit.
	MaxChatLength int
	Now           func() time.Time
}

type hubMessageKind int

const (
	hubRegister hubMessageKind = iota
	hubUnregister
	hubCommand
)

type hubMessage struct {
	kind   hubMessageKind
	client *Client
	cmd    *Command
}

// Hub is the process-wide room registry.
// Only the Run goroutine reads or writes the rooms map, which serializes
// room creation and eviction; each room then serializes its own state.
type Hub struct {
	store store.Store
	log   *zerolog.Logger
	opts  Options

	inbox chan hubMessage
	done  chan struct{}
	wg    sync.WaitGroup

	rooms map[string]*Room
}

// NewHub creates a new hub backed by the given store.
func NewHub(st store.Store, opts Options) *Hub {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{
		store: st,
		log:   opts.Logger,
		opts:  opts,
		inbox: make(chan hubMessage, hubInboxBuffer),
		done:  make(chan struct{}),
		rooms: make(map[string]*Room),
	}
}

// RegisterClient attaches a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.post(hubMessage{kind: hubRegister, client: c})
}

// UnregisterClient removes a connection from every room it joined.
func (h *Hub) UnregisterClient(c *Client) {
	h.post(hubMessage{kind: hubUnregister, client: c})
}

func (h *Hub) post(msg hubMessage) {
	select {
	case h.inbox <- msg:
	case <-h.done:
	}
}

// Done is closed after Run has returned and every room has drained its writes.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run processes hub messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if h.opts.RoomIdleTTL > 0 {
		ticker := time.NewTicker(max(h.opts.RoomIdleTTL/2, minSweepInterval))
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			h.wg.Wait()
			close(h.done)
			return
		case msg := <-h.inbox:
			h.handle(ctx, msg)
		case <-sweep:
			h.evictIdle()
		}
	}
}

func (h *Hub) handle(ctx context.Context, msg hubMessage) {
	c := msg.client
	switch msg.kind {
	case hubRegister:
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.pump(ctx, c)
		}()
		c.deliver(&Event{Kind: EventConnected, ConnID: c.ID})
		h.log.Debug().Str("conn_id", c.ID).Msg("client registered")

	case hubUnregister:
		c.close()
		h.leaveCurrent(c)
		h.log.Debug().Str("conn_id", c.ID).Msg("client unregistered")

	case hubCommand:
		// Commands still queued in the pump after a disconnect are dropped.
		if c.closed() {
			return
		}
		h.dispatch(ctx, c, msg.cmd)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	if err := cmd.validate(); err != nil {
		h.log.Debug().Err(err).Str("conn_id", c.ID).Msg("ignoring invalid command")
		return
	}

	room, ok := h.rooms[cmd.Room]
	if !ok {
		if cmd.Kind != CommandJoinSession {
			return
		}
		room = h.createRoom(ctx, cmd.Room)
	}

	if cmd.Kind == CommandJoinSession && c.room != cmd.Room {
		h.leaveCurrent(c)
		c.room = cmd.Room
	}
	room.send(roomMessage{client: c, cmd: cmd})
}

// leaveCurrent removes c from the room it joined last.
// A connection is a member of at most one room; events carry no room id.
func (h *Hub) leaveCurrent(c *Client) {
	if c.room == "" {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		room.send(roomMessage{client: c, cmd: &Command{Kind: commandLeave, Room: c.room}})
	}
	c.room = ""
}

func (h *Hub) createRoom(ctx context.Context, id string) *Room {
	room := newRoom(id, h.store, h.log, h.opts)
	h.rooms[id] = room

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		room.run(ctx)
	}()
	go func() {
		defer h.wg.Done()
		room.writes.run(ctx)
	}()

	h.log.Info().Str("room_id", id).Msg("room created")
	return room
}

// pump forwards a client's commands to the hub inbox in order.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- hubMessage{kind: hubCommand, client: c, cmd: cmd}:
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// evictIdle asks every long-empty room whether it can be dropped.
// The room answers on its own goroutine, after any join already queued to it.
func (h *Hub) evictIdle() {
	for id, room := range h.rooms {
		if !room.idleFor(h.opts.RoomIdleTTL) {
			continue
		}

		req := &evictRequest{idle: h.opts.RoomIdleTTL, reply: make(chan bool, 1)}
		if !room.send(roomMessage{evict: req}) {
			delete(h.rooms, id)
			continue
		}

		select {
		case evicted := <-req.reply:
			if evicted {
				delete(h.rooms, id)
			}
		case <-room.stopped:
			delete(h.rooms, id)
		}
	}
}
