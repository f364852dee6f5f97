// Package poller implements the pull-based sync client: a fixed-rate
// loop that snapshots the server's conversation, message and
// notification state and replaces its local view wholesale, so a
// missed cycle costs freshness but never correctness.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pondside/internal/models"
)

// Config controls the sync loop.
type Config struct {
	BaseURL  string
	Token    string
	Interval time.Duration
}

// ConversationRow mirrors one row of the server's conversation list.
type ConversationRow struct {
	Peer        *models.User    `json:"peer"`
	Presence    string          `json:"presence"`
	UnreadCount int             `json:"unreadCount"`
	LastMessage *models.Message `json:"lastMessage"`
}

// Snapshot is one complete fetch of remote state. Each cycle builds a
// fresh Snapshot and swaps it in; nothing is patched incrementally.
type Snapshot struct {
	Conversations []*ConversationRow
	Messages      []*models.Message // active peer only
	Notifications []*models.Notification
	FetchedAt     time.Time
}

// Poller runs the sync loop against a server.
type Poller struct {
	config Config
	client *http.Client

	mu         sync.RWMutex
	snapshot   *Snapshot
	activePeer uuid.UUID

	// fetch sequence; a slow response from an older cycle must never
	// overwrite a newer snapshot
	seq     atomic.Uint64
	applied atomic.Uint64
}

func New(config Config) *Poller {
	if config.Interval <= 0 {
		config.Interval = 2 * time.Second
	}
	return &Poller{
		config:   config,
		client:   &http.Client{Timeout: 10 * time.Second},
		snapshot: &Snapshot{},
	}
}

// SetActivePeer selects whose message history the loop fetches. Nil
// clears the selection.
func (p *Poller) SetActivePeer(peerID uuid.UUID) {
	p.mu.Lock()
	p.activePeer = peerID
	p.mu.Unlock()
}

// Snapshot returns the most recently applied state.
func (p *Poller) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Run drives the loop until the context is cancelled. The first cycle
// fires immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle fetches everything for one snapshot and applies it if no newer
// cycle has landed first.
func (p *Poller) cycle(ctx context.Context) {
	seq := p.seq.Add(1)

	p.mu.RLock()
	activePeer := p.activePeer
	p.mu.RUnlock()

	// Polling doubles as the liveness heartbeat.
	if err := p.post(ctx, "/user/heartbeat", nil); err != nil {
		log.Printf("poller: heartbeat failed: %v", err)
	}

	next := &Snapshot{FetchedAt: time.Now()}
	if err := p.get(ctx, "/conversations", nil, &next.Conversations); err != nil {
		log.Printf("poller: conversations fetch failed: %v", err)
		return
	}
	if activePeer != uuid.Nil {
		query := url.Values{"peerId": {activePeer.String()}}
		if err := p.get(ctx, "/messages", query, &next.Messages); err != nil {
			log.Printf("poller: messages fetch failed: %v", err)
			return
		}
	}
	if err := p.get(ctx, "/notifications", nil, &next.Notifications); err != nil {
		log.Printf("poller: notifications fetch failed: %v", err)
		return
	}

	p.apply(seq, next)
}

func (p *Poller) apply(seq uint64, next *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.applied.Load() {
		// stale cycle
		return
	}
	p.applied.Store(seq)
	p.snapshot = next
}

func (p *Poller) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := p.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.Token)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Poller) post(ctx context.Context, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}
