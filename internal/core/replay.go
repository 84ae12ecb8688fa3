package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wiredraw-server/internal/store"
)

// replay queues the history load behind every write accepted before the join,
// then sends the snapshot to the joining client only.
func (r *Room) replay(c *Client) {
	r.writes.push(func(ctx context.Context) {
		ev, err := loadSession(ctx, r.store, r.ID)
		if err != nil {
			r.log.Warn().Err(err).Str("conn_id", c.ID).Msg("failed to load session data")
			return
		}
		c.deliverEventually(ev)

		r.log.Debug().
			Str("conn_id", c.ID).
			Int("strokes", len(ev.Strokes)).
			Int("messages", len(ev.ChatHistory)).
			Msg("session data sent")
	})
}

func loadSession(ctx context.Context, st store.Store, roomID string) (*Event, error) {
	var (
		strokes []store.Stroke
		chat    []store.ChatMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		strokes, err = st.ListStrokes(gctx, roomID)
		return err
	})
	g.Go(func() error {
		var err error
		chat, err = st.ListChatMessages(gctx, roomID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load session %s: %w", roomID, err)
	}

	return &Event{
		Kind:        EventSessionData,
		Room:        roomID,
		Strokes:     strokes,
		ChatHistory: chat,
	}, nil
}
