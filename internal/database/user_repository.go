package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pondside/internal/models"
	"pondside/internal/utils"
)

// UserDocument represents the MongoDB schema for a user
type UserDocument struct {
	ID             string    `bson:"_id"`
	Handle         string    `bson:"handle"`
	Address        string    `bson:"address"`
	HashedPassword string    `bson:"hashedPassword"`
	DisplayName    string    `bson:"displayName"`
	Bio            string    `bson:"bio"`
	AvatarRef      string    `bson:"avatarRef"`
	Status         string    `bson:"status"`
	LastSeen       time.Time `bson:"lastSeen"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func userToDocument(user *models.User) UserDocument {
	return UserDocument{
		ID:             user.ID.String(),
		Handle:         user.Handle,
		Address:        user.Address,
		HashedPassword: user.HashedPassword,
		DisplayName:    user.DisplayName,
		Bio:            user.Bio,
		AvatarRef:      user.AvatarRef,
		Status:         string(user.Status),
		LastSeen:       user.LastSeen,
		CreatedAt:      user.CreatedAt,
	}
}

func documentToUser(doc UserDocument) *models.User {
	id, _ := uuid.Parse(doc.ID)
	return &models.User{
		ID:             id,
		Handle:         doc.Handle,
		Address:        doc.Address,
		HashedPassword: doc.HashedPassword,
		DisplayName:    doc.DisplayName,
		Bio:            doc.Bio,
		AvatarRef:      doc.AvatarRef,
		Status:         models.UserStatus(doc.Status),
		LastSeen:       doc.LastSeen,
		CreatedAt:      doc.CreatedAt,
	}
}

// SaveUser creates or updates a user in MongoDB
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": user.ID.String()}
	update := bson.M{"$set": userToDocument(user)}

	_, err := m.Users.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewAppError(utils.ErrDuplicate, "Handle or address already registered", err)
	}
	return err
}

// GetAllUsers returns every user record, for directory bootstraps.
func (m *MongoDB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	cursor, err := m.Users.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*models.User
	for cursor.Next(ctx) {
		var doc UserDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, documentToUser(doc))
	}
	return users, cursor.Err()
}

// UpdatePresence stamps the stored presence machine state.
func (m *MongoDB) UpdatePresence(ctx context.Context, id uuid.UUID, status models.UserStatus, lastSeen time.Time) error {
	_, err := m.Users.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"status": string(status), "lastSeen": lastSeen}},
	)
	return err
}
