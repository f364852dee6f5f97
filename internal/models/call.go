package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallKind selects the negotiated media.
type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

// CallStatus is the call session state. Ended is terminal.
type CallStatus string

const (
	CallInitiated CallStatus = "initiated"
	CallOngoing   CallStatus = "ongoing"
	CallEnded     CallStatus = "ended"
)

type Call struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CallerID   uuid.UUID  `json:"callerId" db:"caller_id"`
	ReceiverID uuid.UUID  `json:"receiverId" db:"receiver_id"`
	Kind       CallKind   `json:"kind" db:"call_kind"`
	Status     CallStatus `json:"status" db:"status"`
	StartTime  time.Time  `json:"startTime" db:"start_time"`
	EndTime    *time.Time `json:"endTime,omitempty" db:"end_time"`
}

// Active reports whether the call still occupies its pair.
func (c *Call) Active() bool {
	return c.Status == CallInitiated || c.Status == CallOngoing
}

// PairKey returns an order-independent key for a user pair, so both
// (a,b) and (b,a) address the same call slot.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if strings.Compare(as, bs) > 0 {
		as, bs = bs, as
	}
	return as + ":" + bs
}
