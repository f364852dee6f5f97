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

// NotificationDocument represents the MongoDB document structure for notifications
type NotificationDocument struct {
	ID          string    `bson:"_id"`
	RecipientID string    `bson:"recipientId"`
	Kind        string    `bson:"kind"`
	Content     string    `bson:"content"`
	IsRead      bool      `bson:"isRead"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// SaveNotification appends a notification to the recipient's inbox.
func (m *MongoDB) SaveNotification(ctx context.Context, n *models.Notification) error {
	doc := NotificationDocument{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		Kind:        string(n.Kind),
		Content:     n.Content,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}

	_, err := m.Notifications.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to save notification: %v", err)
	}
	return nil
}

// GetUnreadNotifications returns every unread notification oldest-first,
// across all recipients. Read entries are never served again, so this
// is the whole backlog a restart needs to carry forward.
func (m *MongoDB) GetUnreadNotifications(ctx context.Context) ([]*models.Notification, error) {
	filter := bson.M{"isRead": false}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := m.Notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %v", err)
	}
	defer cursor.Close(ctx)

	var notifications []*models.Notification
	for cursor.Next(ctx) {
		var doc NotificationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		recipient, _ := uuid.Parse(doc.RecipientID)
		notifications = append(notifications, &models.Notification{
			ID:          id,
			RecipientID: recipient,
			Kind:        models.NotificationKind(doc.Kind),
			Content:     doc.Content,
			IsRead:      doc.IsRead,
			CreatedAt:   doc.CreatedAt,
		})
	}
	return notifications, cursor.Err()
}

// MarkNotificationsRead flips the read flag on the whole unread inbox.
func (m *MongoDB) MarkNotificationsRead(ctx context.Context, recipientID uuid.UUID) error {
	filter := bson.M{"recipientId": recipientID.String(), "isRead": false}
	_, err := m.Notifications.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	return err
}

// TrimNotifications enforces the bounded per-user backlog, deleting the
// oldest entries beyond keep.
func (m *MongoDB) TrimNotifications(ctx context.Context, recipientID uuid.UUID, keep int64) error {
	filter := bson.M{"recipientId": recipientID.String()}
	count, err := m.Notifications.CountDocuments(ctx, filter)
	if err != nil || count <= keep {
		return err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(count - keep).
		SetProjection(bson.M{"_id": 1})
	cursor, err := m.Notifications.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		ids = append(ids, doc.ID)
	}
	if len(ids) == 0 {
		return cursor.Err()
	}

	_, err = m.Notifications.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}
