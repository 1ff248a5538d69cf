//go:build integration

package mongo

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/deskchat/deskchat-server/internal/store"
)

// Integration tests for the mongo message backend. Run with a reachable
// server, e.g.:
//
//	DESKCHAT_MONGO_TEST_URI=mongodb://localhost:27017 go test -tags integration ./internal/store/mongo/
func newTestStore(t *testing.T) *MessageStore {
	t.Helper()

	uri := os.Getenv("DESKCHAT_MONGO_TEST_URI")
	if uri == "" {
		t.Skip("DESKCHAT_MONGO_TEST_URI not set")
	}

	database := fmt.Sprintf("deskchat_test_%d", time.Now().UnixNano())
	ms, err := New(uri, database)
	if err != nil {
		t.Fatalf("connect test mongo: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = ms.client.Database(database).Drop(ctx)
		_ = ms.Close()
	})

	return ms
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		msg := &store.Message{ConversationLow: 1, ConversationHigh: 2, SenderID: 2, Text: fmt.Sprintf("m%d", i)}
		if err := ms.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if msg.ID <= prev {
			t.Fatalf("ids must strictly increase: got %d after %d", msg.ID, prev)
		}
		if msg.SentAt.IsZero() {
			t.Fatalf("append must assign SentAt")
		}
		prev = msg.ID
	}
}

func TestAppendIDsUniqueUnderConcurrency(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 5

	ids := make(chan int64, writers*perWriter)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				msg := &store.Message{ConversationLow: 1, ConversationHigh: 2, SenderID: 2, Text: fmt.Sprintf("w%d-%d", w, i)}
				if err := ms.AppendMessage(ctx, msg); err != nil {
					t.Errorf("append: %v", err)
					return
				}
				ids <- msg.ID
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate message id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != writers*perWriter {
		t.Fatalf("expected %d appends, got %d", writers*perWriter, len(seen))
	}
}

func TestListReturnsAppendOrder(t *testing.T) {
	ms := newTestStore(t)
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		msg := &store.Message{ConversationLow: 1, ConversationHigh: 2, SenderID: 2, Text: text}
		if err := ms.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}

	// Noise in another conversation must not leak into the listing.
	noise := &store.Message{ConversationLow: 3, ConversationHigh: 4, SenderID: 4, Text: "noise"}
	if err := ms.AppendMessage(ctx, noise); err != nil {
		t.Fatalf("append noise: %v", err)
	}

	msgs, err := ms.ListMessages(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(msgs))
	}
	for i, msg := range msgs {
		if msg.Text != texts[i] {
			t.Fatalf("position %d: got %q, want %q", i, msg.Text, texts[i])
		}
	}
	if !sort.SliceIsSorted(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID }) {
		t.Fatalf("listing must be ordered by id")
	}

	empty, err := ms.ListMessages(ctx, 7, 9)
	if err != nil {
		t.Fatalf("list empty conversation: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no messages, got %d", len(empty))
	}
}
