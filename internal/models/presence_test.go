package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPresenceTextOnline(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "online", PresenceText(StatusOnline, now.Add(-time.Hour), now))
}

func TestPresenceTextOffline(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name     string
		ago      time.Duration
		expected string
	}{
		{"seconds ago", 59 * time.Second, "just now"},
		{"exactly a minute", 60 * time.Second, "1 minutes ago"},
		{"under an hour", 3599 * time.Second, "59 minutes ago"},
		{"exactly an hour", 3600 * time.Second, "1 hours ago"},
		{"several hours", 5 * time.Hour, "5 hours ago"},
		{"days", 49 * time.Hour, "2 days ago"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PresenceText(StatusOffline, now.Add(-tc.ago), now))
		})
	}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.Equal(t, PairKey(a, b), PairKey(b, a))
	assert.NotEqual(t, PairKey(a, b), PairKey(a, uuid.New()))
}

func TestCallActive(t *testing.T) {
	call := &Call{Status: CallInitiated}
	assert.True(t, call.Active())

	call.Status = CallOngoing
	assert.True(t, call.Active())

	call.Status = CallEnded
	assert.False(t, call.Active())
}
