package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pondside/internal/models"
)

// MessageDocument represents the MongoDB document structure for messages
type MessageDocument struct {
	ID            string    `bson:"_id"`
	PairKey       string    `bson:"pairKey"`
	SenderID      string    `bson:"senderId"`
	ReceiverID    string    `bson:"receiverId"`
	Body          string    `bson:"body"`
	AttachmentRef string    `bson:"attachmentRef,omitempty"`
	Delivered     bool      `bson:"delivered"`
	IsRead        bool      `bson:"isRead"`
	CreatedAt     time.Time `bson:"createdAt"`
	Seq           uint64    `bson:"seq"`
}

// SaveMessage saves a new message to MongoDB
func (m *MongoDB) SaveMessage(ctx context.Context, message *models.Message) error {
	doc := MessageDocument{
		ID:            message.ID.String(),
		PairKey:       models.PairKey(message.SenderID, message.ReceiverID),
		SenderID:      message.SenderID.String(),
		ReceiverID:    message.ReceiverID.String(),
		Body:          message.Body,
		AttachmentRef: message.AttachmentRef,
		Delivered:     message.Delivered,
		IsRead:        message.IsRead,
		CreatedAt:     message.CreatedAt,
		Seq:           message.Seq,
	}

	_, err := m.Messages.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}
	return nil
}

// GetAllMessages retrieves every stored message, ascending by creation
// time with the store sequence breaking ties. Used to rebuild the
// in-memory conversation logs on startup.
func (m *MongoDB) GetAllMessages(ctx context.Context) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "seq", Value: 1}})

	cursor, err := m.Messages.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %v", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var doc MessageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		senderID, _ := uuid.Parse(doc.SenderID)
		receiverID, _ := uuid.Parse(doc.ReceiverID)

		messages = append(messages, &models.Message{
			ID:            id,
			SenderID:      senderID,
			ReceiverID:    receiverID,
			Body:          doc.Body,
			AttachmentRef: doc.AttachmentRef,
			Delivered:     doc.Delivered,
			IsRead:        doc.IsRead,
			CreatedAt:     doc.CreatedAt,
			Seq:           doc.Seq,
		})
	}
	return messages, cursor.Err()
}

// MarkConversationRead flips is_read on every unread message sent by
// otherParty to reader. A single update-by-predicate keeps the call
// idempotent under concurrent duplicates.
func (m *MongoDB) MarkConversationRead(ctx context.Context, reader, otherParty uuid.UUID) error {
	filter := bson.M{
		"senderId":   otherParty.String(),
		"receiverId": reader.String(),
		"isRead":     false,
	}
	_, err := m.Messages.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	return err
}

// MarkConversationDelivered flips delivered on every undelivered
// message addressed to reader from otherParty.
func (m *MongoDB) MarkConversationDelivered(ctx context.Context, reader, otherParty uuid.UUID) error {
	filter := bson.M{
		"senderId":   otherParty.String(),
		"receiverId": reader.String(),
		"delivered":  false,
	}
	_, err := m.Messages.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"delivered": true}})
	return err
}
