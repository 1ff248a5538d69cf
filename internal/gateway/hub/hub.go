package hub

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/gateway"
)

var (
	// ErrAlreadySubscribed is returned when a socket subscribes to a channel twice.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrNotSubscribed is returned when unsubscribing from a channel the socket never joined.
	ErrNotSubscribed = errors.New("not subscribed")
	// ErrHubClosed is returned when the hub loop is no longer running.
	ErrHubClosed = errors.New("hub closed")
)

// Client is one subscriber socket as seen by the hub. Events fan out through
// the Events channel; slow consumers are dropped rather than blocking the loop.
type Client struct {
	ID       string
	Events   chan gateway.Event
	channels map[string]struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Events:   make(chan gateway.Event, 8),
		channels: make(map[string]struct{}),
	}
}

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdSubscribe
	cmdUnsubscribe
	cmdPublish
)

type command struct {
	kind    commandKind
	client  *Client
	channel string
	event   gateway.Event
	reply   chan error
}

// Hub is the in-process delivery gateway: it tracks channel subscriptions and
// fans published events out to every subscriber. All state is owned by the
// Run goroutine; callers interact through the commands channel.
type Hub struct {
	commands chan command
	done     chan struct{}
	channels map[string]map[*Client]struct{}
	log      *zerolog.Logger
}

// New creates a hub. Call Run before publishing or subscribing.
func New(logger *zerolog.Logger) *Hub {
	return &Hub{
		commands: make(chan command, 64),
		done:     make(chan struct{}),
		channels: make(map[string]map[*Client]struct{}),
		log:      logger,
	}
}

// Run owns the hub state until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case cmd := <-h.commands:
			h.handle(cmd)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handle(cmd command) {
	var err error
	switch cmd.kind {
	case cmdRegister:
		// Nothing to track until the client subscribes somewhere.
	case cmdUnregister:
		for channel := range cmd.client.channels {
			h.removeSubscriber(channel, cmd.client)
		}
		close(cmd.client.Events)
	case cmdSubscribe:
		err = h.subscribe(cmd.channel, cmd.client)
	case cmdUnsubscribe:
		err = h.unsubscribe(cmd.channel, cmd.client)
	case cmdPublish:
		h.broadcast(cmd.event)
	}
	if cmd.reply != nil {
		cmd.reply <- err
	}
}

func (h *Hub) subscribe(channel string, c *Client) error {
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	if _, exists := subs[c]; exists {
		return ErrAlreadySubscribed
	}
	subs[c] = struct{}{}
	c.channels[channel] = struct{}{}
	return nil
}

func (h *Hub) unsubscribe(channel string, c *Client) error {
	subs, ok := h.channels[channel]
	if !ok {
		return ErrNotSubscribed
	}
	if _, exists := subs[c]; !exists {
		return ErrNotSubscribed
	}
	h.removeSubscriber(channel, c)
	delete(c.channels, channel)
	return nil
}

func (h *Hub) removeSubscriber(channel string, c *Client) {
	subs := h.channels[channel]
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) broadcast(ev gateway.Event) {
	for c := range h.channels[ev.Channel] {
		select {
		case c.Events <- ev:
		default:
			// Drop if slow consumer; the list path is the backstop.
			h.log.Warn().Str("client_id", c.ID).Str("channel", ev.Channel).Msg("dropping event for slow subscriber")
		}
	}
}

// Register announces a new subscriber socket.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	return h.send(ctx, command{kind: cmdRegister, client: c})
}

// Unregister removes the socket from every channel and closes its Events channel.
func (h *Hub) Unregister(ctx context.Context, c *Client) error {
	return h.send(ctx, command{kind: cmdUnregister, client: c})
}

// Subscribe adds the socket to a channel. Authorization happens before this
// call; the hub only tracks membership.
func (h *Hub) Subscribe(ctx context.Context, c *Client, channel string) error {
	return h.send(ctx, command{kind: cmdSubscribe, client: c, channel: channel})
}

// Unsubscribe removes the socket from a channel.
func (h *Hub) Unsubscribe(ctx context.Context, c *Client, channel string) error {
	return h.send(ctx, command{kind: cmdUnsubscribe, client: c, channel: channel})
}

// Publish fans the event out to the channel's current subscribers.
// Publishing to a channel with no subscribers succeeds and delivers nothing.
func (h *Hub) Publish(ctx context.Context, ev gateway.Event) error {
	return h.send(ctx, command{kind: cmdPublish, event: ev})
}

func (h *Hub) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case h.commands <- cmd:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ gateway.Gateway = (*Hub)(nil)
