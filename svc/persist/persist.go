// Package persist writes and restores the durable state snapshot: one JSON
// document holding the message ledger, ban and admin registries, per-client
// metrics and paste metadata. Restore never fails the boot; any unreadable
// or undecodable snapshot falls back to empty registries.
package persist

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pinwall/metrics"
	"pinwall/pkg/domain"
	"pinwall/svc/access"
	"pinwall/svc/ledger"
	"pinwall/svc/store"
	"pinwall/svc/track"
	"pinwall/svc/util"
)

// StateSave is the on-disk snapshot layout. Absent sections restore as
// empty registries, never as errors.
type StateSave struct {
	Messages    map[string]domain.ClientRecord `json:"messages"`
	BannedIPs   []string                       `json:"banned_ips,omitempty"`
	AdminState  *domain.AdminState             `json:"admin_state,omitempty"`
	UniqueUsers map[string]track.MetricRecord  `json:"unique_users,omitempty"`
	Pastes      map[string]domain.Paste        `json:"pastes,omitempty"`
}

type Manager struct {
	path     string
	mu       sync.Mutex
	ledger   *ledger.Ledger
	access   *access.Registry
	tracker  *track.Tracker
	store    *store.Store
	sweeping bool
}

// NewManager fails only when the snapshot directory cannot be created at
// all; that is the one persistence failure allowed to be fatal, and only at
// startup.
func NewManager(path string, l *ledger.Ledger, a *access.Registry, t *track.Tracker, s *store.Store) (*Manager, error) {
	if l == nil || a == nil || t == nil || s == nil {
		panic("persist manager: nil registry")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create snapshot dir")
		}
	}
	return &Manager{path: path, ledger: l, access: a, tracker: t, store: s}, nil
}

// Save serializes all registries and writes the snapshot atomically via a
// temp file and rename. Each registry is copied under its own read lock;
// the document is not a consistent cut across registries, which is accepted
// (state mutated between section copies lands in the next write-through).
// File I/O happens with no registry lock held.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, banned := m.access.Snapshot()
	save := StateSave{
		Messages:    m.ledger.Snapshot(),
		BannedIPs:   banned,
		AdminState:  &state,
		UniqueUsers: m.tracker.Snapshot(),
		Pastes:      m.store.Snapshot(),
	}

	data, err := json.Marshal(save)
	if err != nil {
		metrics.SnapshotErrors.Inc()
		return errors.Wrap(err, "marshal snapshot")
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		metrics.SnapshotErrors.Inc()
		return errors.Wrap(err, "write snapshot")
	}
	if err := os.Rename(tmp, m.path); err != nil {
		metrics.SnapshotErrors.Inc()
		return errors.Wrap(err, "replace snapshot")
	}
	metrics.SnapshotWrites.Inc()

	// host-readable renders ride along with the snapshot, best effort
	m.writeRenders(save)
	return nil
}

// SaveOrLog is Save for write-through call sites: a failed write is logged
// and the in-memory state stays authoritative.
func (m *Manager) SaveOrLog() {
	if err := m.Save(); err != nil {
		util.Error().Err(err).Str("path", m.path).Msg("snapshot write failed, in-memory state remains authoritative")
	}
}

// Restore loads the snapshot into the registries. Missing file, unreadable
// bytes or undecodable JSON all log a diagnostic and leave the registries
// empty; persistence corruption is never fatal.
func (m *Manager) Restore() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			util.Info().Str("path", m.path).Msg("no snapshot found, starting with empty state")
		} else {
			util.Error().Err(err).Str("path", m.path).Msg("snapshot unreadable, starting with empty state")
		}
		return
	}

	var save StateSave
	if err := json.Unmarshal(data, &save); err != nil {
		util.Error().Err(err).Str("path", m.path).Msg("snapshot undecodable, starting with empty state")
		return
	}

	if save.Messages != nil {
		m.ledger.Load(save.Messages)
	}
	adminState := domain.AdminState{}
	if save.AdminState != nil {
		adminState = *save.AdminState
	}
	m.access.Load(adminState, save.BannedIPs)
	if save.UniqueUsers != nil {
		m.tracker.Load(save.UniqueUsers)
	}
	if save.Pastes != nil {
		m.store.Load(save.Pastes)
	}
	util.Info().
		Str("path", m.path).
		Int("clients", m.ledger.ClientCount()).
		Int("banned", len(save.BannedIPs)).
		Int("users", m.tracker.UniqueUsers()).
		Int("pastes", m.store.Len()).
		Msg("state restored")
}

// StartSweeper runs the stale-paste eviction on a ticker until ctx is
// cancelled. Each cycle that evicts something triggers a snapshot write.
// One sweeper per manager at a time; once a sweeper has wound down a new
// one may be started.
func (m *Manager) StartSweeper(ctx context.Context, interval, maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweeping {
		return errors.New("sweeper already running")
	}
	m.sweeping = true
	go m.runSweeper(ctx, interval, maxAge)
	return nil
}

func (m *Manager) runSweeper(ctx context.Context, interval, maxAge time.Duration) {
	defer func() {
		m.mu.Lock()
		m.sweeping = false
		m.mu.Unlock()
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().Dur("interval", interval).Dur("max_age", maxAge).Msg("stale paste sweeper started")
	for {
		select {
		case <-ctx.Done():
			util.Info().Msg("stale paste sweeper shutting down")
			return
		case <-ticker.C:
			removed := m.store.SweepStale(maxAge)
			metrics.SweepCycles.Inc()
			if removed > 0 {
				metrics.PastesSwept.Add(float64(removed))
				util.Info().Int("removed", removed).Msg("stale pastes evicted")
				m.SaveOrLog()
			}
		}
	}
}
