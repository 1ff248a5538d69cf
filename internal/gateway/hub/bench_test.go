package hub

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/gateway"
)

func benchmarkChannelFanout(b *testing.B, subscribers int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := zerolog.New(nil)
	h := New(&logger)
	go h.Run(ctx)

	const channel = "private-chat-1-2"

	clients := make([]*Client, 0, subscribers)
	for i := 0; i < subscribers; i++ {
		c := NewClient(fmt.Sprintf("bench-%d", i))
		if err := h.Register(ctx, c); err != nil {
			b.Fatalf("register: %v", err)
		}
		if err := h.Subscribe(ctx, c, channel); err != nil {
			b.Fatalf("subscribe: %v", err)
		}
		clients = append(clients, c)
	}

	// Drain every subscriber but the first so the loop never has to drop,
	// then pace the benchmark on the first one's deliveries.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	ev := gateway.Event{Channel: channel, Name: gateway.EventMessage, Payload: []byte(`{"text":"payload"}`)}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := h.Publish(ctx, ev); err != nil {
			b.Fatalf("publish: %v", err)
		}
		<-target.Events
	}
}

func BenchmarkChannelFanout_10(b *testing.B)  { benchmarkChannelFanout(b, 10) }
func BenchmarkChannelFanout_100(b *testing.B) { benchmarkChannelFanout(b, 100) }
func BenchmarkChannelFanout_500(b *testing.B) { benchmarkChannelFanout(b, 500) }
