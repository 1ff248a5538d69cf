package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/gateway"
)

func startHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	logger := zerolog.New(nil)
	h := New(&logger)
	go h.Run(ctx)

	return h, ctx
}

func mustEvent(t *testing.T, ch <-chan gateway.Event) gateway.Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected event not received")
		return gateway.Event{}
	}
}

func TestHubSubscribePublishFanout(t *testing.T) {
	h, ctx := startHub(t)

	agent := NewClient("sock-agent")
	visitor := NewClient("sock-visitor")
	stranger := NewClient("sock-stranger")

	for _, c := range []*Client{agent, visitor, stranger} {
		if err := h.Register(ctx, c); err != nil {
			t.Fatalf("register %s: %v", c.ID, err)
		}
	}

	if err := h.Subscribe(ctx, agent, "private-chat-1-2"); err != nil {
		t.Fatalf("subscribe agent: %v", err)
	}
	if err := h.Subscribe(ctx, visitor, "private-chat-1-2"); err != nil {
		t.Fatalf("subscribe visitor: %v", err)
	}
	if err := h.Subscribe(ctx, stranger, "private-chat-3-4"); err != nil {
		t.Fatalf("subscribe stranger: %v", err)
	}

	ev := gateway.Event{
		Channel: "private-chat-1-2",
		Name:    gateway.EventMessage,
		Payload: json.RawMessage(`{"text":"hi"}`),
	}
	if err := h.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, c := range []*Client{agent, visitor} {
		got := mustEvent(t, c.Events)
		if got.Channel != ev.Channel || got.Name != ev.Name {
			t.Fatalf("client %s: unexpected event %+v", c.ID, got)
		}
	}

	select {
	case ev := <-stranger.Events:
		t.Fatalf("stranger must not receive the event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDoubleSubscribe(t *testing.T) {
	h, ctx := startHub(t)

	c := NewClient("sock-1")
	if err := h.Register(ctx, c); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := h.Subscribe(ctx, c, "private-chat-1-2"); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if err := h.Subscribe(ctx, c, "private-chat-1-2"); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
	}
}

func TestHubUnsubscribeUnknownChannel(t *testing.T) {
	h, ctx := startHub(t)

	c := NewClient("sock-1")
	if err := h.Register(ctx, c); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := h.Unsubscribe(ctx, c, "private-chat-1-2"); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("expected ErrNotSubscribed, got %v", err)
	}
}

func TestHubPublishToEmptyChannelSucceeds(t *testing.T) {
	h, ctx := startHub(t)

	ev := gateway.Event{Channel: "private-chat-7-9", Name: gateway.EventMessage}
	if err := h.Publish(ctx, ev); err != nil {
		t.Fatalf("publish to empty channel must succeed: %v", err)
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	h, ctx := startHub(t)

	c := NewClient("sock-1")
	if err := h.Register(ctx, c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.Subscribe(ctx, c, "private-chat-1-2"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := h.Unregister(ctx, c); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	// Events channel is closed on unregister.
	if _, ok := <-c.Events; ok {
		t.Fatalf("expected closed events channel")
	}

	if err := h.Publish(ctx, gateway.Event{Channel: "private-chat-1-2", Name: gateway.EventMessage}); err != nil {
		t.Fatalf("publish after unregister: %v", err)
	}
}
