// Package ledger keeps the per-client message history: one record per IP
// holding every message that client has posted and the time of their last
// accepted post, used to enforce the posting cooldown and reject duplicate
// text.
package ledger

import (
	"sync"
	"time"

	"pinwall/pkg/domain"
)

type Ledger struct {
	mu       sync.RWMutex
	clients  map[string]*domain.ClientRecord
	cooldown time.Duration
	now      func() time.Time
}

func New(cooldown time.Duration) *Ledger {
	return &Ledger{
		clients:  make(map[string]*domain.ClientRecord),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// CanPost reports whether ip is outside its posting cooldown. A client with
// no record yet can always post.
func (l *Ledger) CanPost(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.clients[ip]
	if !ok {
		return true
	}
	return l.now().Sub(rec.LastTimePost) >= l.cooldown
}

// IsDuplicate reports whether ip has already posted exactly this text.
// Only that client's own history is consulted.
func (l *Ledger) IsDuplicate(ip, text string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.clients[ip]
	if !ok {
		return false
	}
	for _, m := range rec.Messages {
		if m.Text == text {
			return true
		}
	}
	return false
}

// RecordPost appends a message unconditionally and stamps the cooldown.
// Callers check CanPost and IsDuplicate first; two posts racing between the
// check and this commit can both land inside the cooldown window. That
// window is a few map operations wide and is tolerated.
func (l *Ledger) RecordPost(ip, text, credential string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.clients[ip]
	if !ok {
		rec = &domain.ClientRecord{}
		l.clients[ip] = rec
	}
	rec.Messages = append(rec.Messages, domain.Message{
		Text:      text,
		Timestamp: l.now(),
		UserHash:  credential,
	})
	rec.LastTimePost = l.now()
}

// ResetCooldown zeroes a client's last post time so their next post is
// accepted immediately. Admin-only; no record is created if none exists.
func (l *Ledger) ResetCooldown(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.clients[ip]; ok {
		rec.LastTimePost = time.Time{}
	}
}

// VisibleMessages returns what a viewer may see. A logged-in viewer gets
// every message across all clients scoped to their credential; an anonymous
// viewer gets only the unscoped messages posted from their own IP.
func (l *Ledger) VisibleMessages(viewerIP, credential string) []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Message
	if credential != "" {
		for _, rec := range l.clients {
			for _, m := range rec.Messages {
				if m.UserHash == credential {
					out = append(out, m)
				}
			}
		}
		return out
	}
	rec, ok := l.clients[viewerIP]
	if !ok {
		return nil
	}
	for _, m := range rec.Messages {
		if m.UserHash == "" {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot deep-copies every record for serialization outside the lock.
func (l *Ledger) Snapshot() map[string]domain.ClientRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]domain.ClientRecord, len(l.clients))
	for ip, rec := range l.clients {
		out[ip] = rec.Clone()
	}
	return out
}

// Load replaces the ledger's contents with a restored snapshot.
func (l *Ledger) Load(records map[string]domain.ClientRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string]*domain.ClientRecord, len(records))
	for ip, rec := range records {
		r := rec.Clone()
		l.clients[ip] = &r
	}
}

func (l *Ledger) ClientCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}
