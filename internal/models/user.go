package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserStatus is the stored presence machine state.
type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
)

type User struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Handle         string     `json:"handle" db:"handle"`
	Address        string     `json:"address" db:"address"`
	HashedPassword string     `json:"-" db:"password_hash"`
	DisplayName    string     `json:"displayName" db:"display_name"`
	Bio            string     `json:"bio" db:"bio"`
	AvatarRef      string     `json:"avatarRef" db:"avatar_ref"`
	Status         UserStatus `json:"status" db:"status"`
	LastSeen       time.Time  `json:"lastSeen" db:"last_seen"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
}

// PresenceText derives the display status from the stored state. It is
// never persisted; callers recompute it on every read.
func PresenceText(status UserStatus, lastSeen time.Time, now time.Time) string {
	if status == StatusOnline {
		return "online"
	}

	diff := int64(now.Sub(lastSeen).Seconds())
	switch {
	case diff < 60:
		return "just now"
	case diff < 3600:
		return fmt.Sprintf("%d minutes ago", diff/60)
	case diff < 86400:
		return fmt.Sprintf("%d hours ago", diff/3600)
	default:
		return fmt.Sprintf("%d days ago", diff/86400)
	}
}
