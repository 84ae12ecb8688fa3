package core

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/store"
)

const roomInboxBuffer = 64

type member struct {
	client   *Client
	presence Presence
}

type evictRequest struct {
	idle  time.Duration
	reply chan bool
}

// clearDone reports the outcome of a queued DeleteStrokes back to the actor.
type clearDone struct {
	ok bool
}

// pendingClear tracks strokes accepted after a clear was requested and before it was applied.
// Those strokes survive the delete, so clients get them again after canvasCleared.
type pendingClear struct {
	strokes []store.Stroke
}

type roomMessage struct {
	client  *Client
	cmd     *Command
	cleared *clearDone
	evict   *evictRequest
}

// Room is the in-memory state of one collaborative session.
// All fields below inbox are owned by the run goroutine.
type Room struct {
	ID string

	inbox   chan roomMessage
	stopped chan struct{}
	writes  *writeQueue

	store         store.Store
	log           zerolog.Logger
	now           func() time.Time
	maxChatLength int

	// emptySince is a unix-nano timestamp, 0 while the room has members.
	emptySince atomic.Int64

	// host is "" until the first join, then a member id or NoHost.
	host    string
	members map[string]*member
	clears  []*pendingClear
}

func newRoom(id string, st store.Store, logger *zerolog.Logger, opts Options) *Room {
	r := &Room{
		ID:            id,
		inbox:         make(chan roomMessage, roomInboxBuffer),
		stopped:       make(chan struct{}),
		writes:        newWriteQueue(),
		store:         st,
		log:           logger.With().Str("room_id", id).Logger(),
		now:           opts.Now,
		maxChatLength: opts.MaxChatLength,
		members:       make(map[string]*member),
	}
	r.emptySince.Store(r.now().UnixNano())
	return r
}

// send hands a message to the actor; false if the actor has stopped.
func (r *Room) send(msg roomMessage) bool {
	select {
	case r.inbox <- msg:
		return true
	case <-r.stopped:
		return false
	}
}

// idleFor reports whether the room has been empty for at least d.
func (r *Room) idleFor(d time.Duration) bool {
	since := r.emptySince.Load()
	return since != 0 && r.now().UnixNano()-since >= int64(d)
}

func (r *Room) run(ctx context.Context) {
	defer r.writes.close()
	defer close(r.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.inbox:
			switch {
			case msg.evict != nil:
				evict := len(r.members) == 0 && r.idleFor(msg.evict.idle)
				msg.evict.reply <- evict
				if evict {
					r.log.Info().Msg("room evicted after idle period")
					return
				}
			case msg.cleared != nil:
				r.finishClear(msg.cleared.ok)
			default:
				r.handle(msg.client, msg.cmd)
			}
		}
	}
}

func (r *Room) handle(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinSession:
		r.join(c)
	case commandLeave:
		r.leave(c)
	case CommandDraw:
		r.draw(c, *cmd.Stroke)
	case CommandChatMessage:
		r.chat(c, cmd.Text)
	case CommandClearCanvas:
		r.clear(c)
	case CommandDrawingStatus:
		r.updatePresence(c, func(p *Presence) { p.IsDrawing = cmd.Flag })
	case CommandTypingStatus:
		r.updatePresence(c, func(p *Presence) { p.IsTyping = cmd.Flag })
	case CommandRenameUser:
		r.updatePresence(c, func(p *Presence) { p.Username = truncate(cmd.Text, MaxUsernameLength) })
	case CommandChangeColor:
		r.updatePresence(c, func(p *Presence) { p.Color = cmd.Text })
	case CommandChangeEmoji:
		r.updatePresence(c, func(p *Presence) { p.Emoji = truncate(strings.TrimSpace(cmd.Text), MaxEmojiLength) })
	}
}

func (r *Room) join(c *Client) {
	r.members[c.ID] = &member{client: c, presence: newPresence()}
	r.emptySince.Store(0)

	if r.host == "" {
		r.setHost(c.ID)
	} else {
		c.deliver(&Event{Kind: EventHostChanged, Room: r.ID, HostID: r.host})
	}

	r.broadcastUsers()
	r.replay(c)

	r.log.Info().Str("conn_id", c.ID).Int("members", len(r.members)).Msg("client joined room")
}

func (r *Room) leave(c *Client) {
	if _, ok := r.members[c.ID]; !ok {
		return
	}
	delete(r.members, c.ID)

	if len(r.members) == 0 {
		r.emptySince.Store(r.now().UnixNano())
	}

	if r.host == c.ID {
		next := NoHost
		for id := range r.members {
			next = id
			break
		}
		r.setHost(next)
	}

	r.broadcastUsers()

	r.log.Info().Str("conn_id", c.ID).Int("members", len(r.members)).Msg("client left room")
}

// setHost records the new host and announces it.
func (r *Room) setHost(id string) {
	r.host = id
	r.persist("update session", func(ctx context.Context) error {
		return r.store.CreateOrUpdateSession(ctx, r.ID, id)
	})
	r.broadcast(&Event{Kind: EventHostChanged, Room: r.ID, HostID: id}, "")
}

func (r *Room) draw(c *Client, stroke store.Stroke) {
	if _, ok := r.members[c.ID]; !ok {
		return
	}

	r.broadcast(&Event{Kind: EventDraw, Room: r.ID, Stroke: &stroke}, c.ID)
	for _, p := range r.clears {
		p.strokes = append(p.strokes, stroke)
	}
	r.persist("append stroke", func(ctx context.Context) error {
		return r.store.AppendStroke(ctx, r.ID, stroke)
	})
}

func (r *Room) chat(c *Client, text string) {
	m, ok := r.members[c.ID]
	if !ok {
		return
	}

	msg := store.ChatMessage{
		Username:  m.presence.Username,
		Color:     m.presence.Color,
		Message:   truncate(text, r.maxChatLength),
		CreatedAt: r.now().UTC(),
	}

	r.broadcast(&Event{Kind: EventChatMessage, Room: r.ID, Chat: &msg}, "")
	r.persist("append chat message", func(ctx context.Context) error {
		_, err := r.store.AppendChatMessage(ctx, r.ID, msg)
		return err
	})
}

// clear deletes the stroke history after every stroke accepted before it,
// then reports back to the actor. Any member may clear.
func (r *Room) clear(c *Client) {
	if _, ok := r.members[c.ID]; !ok {
		return
	}

	r.log.Info().Str("conn_id", c.ID).Bool("by_host", c.ID == r.host).Msg("clear canvas requested")
	r.clears = append(r.clears, &pendingClear{})
	r.writes.push(func(ctx context.Context) {
		err := r.store.DeleteStrokes(ctx, r.ID)
		if err != nil {
			r.log.Warn().Err(err).Msg("failed to clear strokes")
		}
		r.send(roomMessage{cleared: &clearDone{ok: err == nil}})
	})
}

// finishClear applies the oldest pending clear. Outcomes arrive in request order
// because the write queue is FIFO. On success every member wipes its canvas and
// then redraws the strokes accepted while the delete was in flight, which the
// store still holds.
func (r *Room) finishClear(ok bool) {
	if len(r.clears) == 0 {
		return
	}
	p := r.clears[0]
	r.clears[0] = nil
	r.clears = r.clears[1:]
	if !ok {
		return
	}

	r.broadcast(&Event{Kind: EventCanvasCleared, Room: r.ID}, "")
	for i := range p.strokes {
		r.broadcast(&Event{Kind: EventDraw, Room: r.ID, Stroke: &p.strokes[i]}, "")
	}
}

func (r *Room) updatePresence(c *Client, mutate func(*Presence)) {
	m, ok := r.members[c.ID]
	if !ok {
		return
	}
	mutate(&m.presence)
	r.broadcastUsers()
}

func (r *Room) broadcastUsers() {
	users := make(map[string]Presence, len(r.members))
	for id, m := range r.members {
		users[id] = m.presence
	}
	r.broadcast(&Event{Kind: EventUserList, Room: r.ID, Users: users}, "")
}

// broadcast delivers ev to every member except the one with id except.
// A full consumer only loses its own copy.
func (r *Room) broadcast(ev *Event, except string) {
	for id, m := range r.members {
		if id == except {
			continue
		}
		if !m.client.deliver(ev) {
			r.log.Debug().Str("conn_id", id).Int("event", int(ev.Kind)).Msg("dropped event for slow consumer")
		}
	}
}

// persist runs fn on the write queue; failures are logged and never retried.
func (r *Room) persist(op string, fn func(ctx context.Context) error) {
	r.writes.push(func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			r.log.Warn().Err(err).Str("op", op).Msg("persist failed")
		}
	})
}
