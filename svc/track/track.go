// Package track keeps per-client usage records: request counts, last seen
// time, last and recent pages, and the set of login credentials observed
// from each IP. Records are created lazily and never deleted; growth is
// bounded by the number of distinct client IPs.
package track

import (
	"sync"
	"time"

	"pinwall/svc/hist"
)

type MetricRecord struct {
	RequestCount uint64        `json:"request_count"`
	Logins       []string      `json:"logins,omitempty"`
	LastSeen     *time.Time    `json:"last_time_seen,omitempty"`
	LastPage     string        `json:"last_page_visited,omitempty"`
	RecentPages  *hist.History `json:"previous_pages,omitempty"`
}

func (m MetricRecord) clone() MetricRecord {
	out := m
	if m.Logins != nil {
		out.Logins = append([]string(nil), m.Logins...)
	}
	if m.LastSeen != nil {
		t := *m.LastSeen
		out.LastSeen = &t
	}
	out.RecentPages = m.RecentPages.Clone()
	return out
}

type Tracker struct {
	mu         sync.RWMutex
	users      map[string]*MetricRecord
	historyCap int
	now        func() time.Time
}

func New(historyCap int) *Tracker {
	return &Tracker{
		users:      make(map[string]*MetricRecord),
		historyCap: historyCap,
		now:        time.Now,
	}
}

// RecordRequest bumps the counter for ip and stamps where and when it was
// last seen. Creates the record on first sight.
func (t *Tracker) RecordRequest(ip, page string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[ip]
	if !ok {
		rec = &MetricRecord{RecentPages: hist.New(t.historyCap)}
		t.users[ip] = rec
	}
	if rec.RecentPages == nil {
		// records restored from older snapshots may lack a history
		rec.RecentPages = hist.New(t.historyCap)
	}
	rec.RequestCount++
	now := t.now()
	rec.LastSeen = &now
	rec.LastPage = page
	rec.RecentPages.Push(page)
}

// RecordLogin remembers that this credential was presented from this IP.
func (t *Tracker) RecordLogin(ip, credential string) {
	if credential == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.users[ip]
	if !ok {
		rec = &MetricRecord{RecentPages: hist.New(t.historyCap)}
		t.users[ip] = rec
	}
	for _, l := range rec.Logins {
		if l == credential {
			return
		}
	}
	rec.Logins = append(rec.Logins, credential)
}

// CountOnline returns how many clients were seen within window of now.
func (t *Tracker) CountOnline(window time.Duration) int {
	cutoff := t.now().Add(-window)
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.users {
		if rec.LastSeen != nil && !rec.LastSeen.Before(cutoff) {
			n++
		}
	}
	return n
}

func (t *Tracker) UniqueUsers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

func (t *Tracker) TotalRequests() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total uint64
	for _, rec := range t.users {
		total += rec.RequestCount
	}
	return total
}

// Snapshot deep-copies every record for serialization outside the lock.
func (t *Tracker) Snapshot() map[string]MetricRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]MetricRecord, len(t.users))
	for ip, rec := range t.users {
		out[ip] = rec.clone()
	}
	return out
}

// Load replaces the tracker's contents with a restored snapshot.
func (t *Tracker) Load(records map[string]MetricRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users = make(map[string]*MetricRecord, len(records))
	for ip, rec := range records {
		r := rec.clone()
		t.users[ip] = &r
	}
}
