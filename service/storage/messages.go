package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Message is immutable once created. At least one of Text/Image is set;
// Image holds a media URL, not the bytes.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SenderID    primitive.ObjectID `bson:"sender_id" json:"senderId"`
	RecipientID primitive.ObjectID `bson:"recipient_id" json:"receiverId"`
	Text        string             `bson:"text,omitempty" json:"text,omitempty"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(c *Client) *MessageStore {
	return &MessageStore{coll: c.DB().Collection(messagesCollection)}
}

// SaveMessage inserts a message document and returns the stored record.
func (s *MessageStore) SaveMessage(ctx context.Context, sender, recipient primitive.ObjectID, text, imageURL string) (*Message, error) {
	msg := &Message{
		SenderID:    sender,
		RecipientID: recipient,
		Text:        text,
		Image:       imageURL,
		CreatedAt:   time.Now().UTC(),
	}
	res, err := s.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, errors.Wrap(err, "insert message")
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)
	return msg, nil
}

// Conversation returns every message exchanged between the two users, in
// either direction, ordered by creation time ascending.
func (s *MessageStore) Conversation(ctx context.Context, a, b primitive.ObjectID) ([]*Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": a, "recipient_id": b},
			bson.M{"sender_id": b, "recipient_id": a},
		},
	}
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find conversation")
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, errors.Wrap(err, "decode conversation")
	}
	return messages, nil
}
