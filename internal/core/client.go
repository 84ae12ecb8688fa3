package core

import "sync"

const (
	clientCommandBuffer = 16
	clientEventBuffer   = 64
)

// Client is a connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	// room is the joined room id, "" before the first join. Owned by the hub goroutine.
	room      string
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, clientCommandBuffer),
		Events:   make(chan *Event, clientEventBuffer),
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub has unregistered the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// deliver is a non-blocking send; false means the event was dropped.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// deliverEventually waits for buffer space in the background when the buffer is full.
func (c *Client) deliverEventually(ev *Event) {
	if c.deliver(ev) {
		return
	}
	go func() {
		select {
		case c.Events <- ev:
		case <-c.done:
		}
	}()
}
