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

// CallDocument represents the MongoDB document structure for calls
type CallDocument struct {
	ID         string     `bson:"_id"`
	PairKey    string     `bson:"pairKey"`
	CallerID   string     `bson:"callerId"`
	ReceiverID string     `bson:"receiverId"`
	Kind       string     `bson:"kind"`
	Status     string     `bson:"status"`
	StartTime  time.Time  `bson:"startTime"`
	EndTime    *time.Time `bson:"endTime,omitempty"`
}

// SaveCall upserts a call record. The partial unique index on pairKey
// (active statuses only) backs up the actor-level conflict check.
func (m *MongoDB) SaveCall(ctx context.Context, call *models.Call) error {
	doc := CallDocument{
		ID:         call.ID.String(),
		PairKey:    models.PairKey(call.CallerID, call.ReceiverID),
		CallerID:   call.CallerID.String(),
		ReceiverID: call.ReceiverID.String(),
		Kind:       string(call.Kind),
		Status:     string(call.Status),
		StartTime:  call.StartTime,
		EndTime:    call.EndTime,
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.Calls.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": doc}, opts)
	if err != nil {
		return fmt.Errorf("failed to save call: %v", err)
	}
	return nil
}

// GetActiveCalls returns every call still in an active status, so a
// restart can rebuild the per-pair busy state instead of colliding
// with the partial unique index on the next initiate.
func (m *MongoDB) GetActiveCalls(ctx context.Context) ([]*models.Call, error) {
	filter := bson.M{"status": bson.M{"$in": []string{
		string(models.CallInitiated),
		string(models.CallOngoing),
	}}}

	cursor, err := m.Calls.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get active calls: %v", err)
	}
	defer cursor.Close(ctx)

	var calls []*models.Call
	for cursor.Next(ctx) {
		var doc CallDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode call: %v", err)
		}

		id, _ := uuid.Parse(doc.ID)
		callerID, _ := uuid.Parse(doc.CallerID)
		receiverID, _ := uuid.Parse(doc.ReceiverID)

		calls = append(calls, &models.Call{
			ID:         id,
			CallerID:   callerID,
			ReceiverID: receiverID,
			Kind:       models.CallKind(doc.Kind),
			Status:     models.CallStatus(doc.Status),
			StartTime:  doc.StartTime,
			EndTime:    doc.EndTime,
		})
	}
	return calls, cursor.Err()
}
