package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deskchat/deskchat-server/internal/store"
)

const (
	messagesCollection = "messages"
	countersCollection = "counters"
	connectTimeout     = 10 * time.Second
)

// MessageStore implements store.MessageStore on a MongoDB database. It models
// the remote content-management backend: the service only appends and lists.
type MessageStore struct {
	client   *mongo.Client
	messages *mongo.Collection
	counters *mongo.Collection
}

// New connects to MongoDB and returns a message store bound to database.
func New(uri, database string) (*MessageStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	return &MessageStore{
		client:   client,
		messages: db.Collection(messagesCollection),
		counters: db.Collection(countersCollection),
	}, nil
}

// Close disconnects the underlying client.
func (s *MessageStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type messageDoc struct {
	ID               int64     `bson:"_id"`
	ConversationLow  int64     `bson:"conversation_low"`
	ConversationHigh int64     `bson:"conversation_high"`
	SenderID         int64     `bson:"sender_id"`
	Text             string    `bson:"text"`
	SentAt           time.Time `bson:"sent_at"`
}

// AppendMessage durably appends a message. IDs come from an atomically
// incremented counter so list order matches append order.
func (s *MessageStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	id, err := s.nextID(ctx)
	if err != nil {
		return fmt.Errorf("allocate message id: %w", err)
	}

	doc := messageDoc{
		ID:               id,
		ConversationLow:  msg.ConversationLow,
		ConversationHigh: msg.ConversationHigh,
		SenderID:         msg.SenderID,
		Text:             msg.Text,
		SentAt:           time.Now().UTC(),
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	msg.ID = doc.ID
	msg.SentAt = doc.SentAt
	return nil
}

// ListMessages returns all messages of the conversation in append order.
func (s *MessageStore) ListMessages(ctx context.Context, low, high int64) ([]*store.Message, error) {
	filter := bson.M{"conversation_low": low, "conversation_high": high}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*store.Message
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, &store.Message{
			ID:               doc.ID,
			ConversationLow:  doc.ConversationLow,
			ConversationHigh: doc.ConversationHigh,
			SenderID:         doc.SenderID,
			Text:             doc.Text,
			SentAt:           doc.SentAt,
		})
	}

	return messages, cursor.Err()
}

func (s *MessageStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": messagesCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}
