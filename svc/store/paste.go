// Package store holds the content-addressed paste store. Text pastes are
// keyed by a hash of their content so identical submissions land on the same
// entry; privileged posters may claim a human-readable alias instead. File
// pastes live in the upload directory with only their metadata tracked here.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"pinwall/pkg/domain"
	"pinwall/svc/util"
)

type Store struct {
	mu        sync.RWMutex
	pastes    map[string]*domain.Paste
	uploadDir string
	minSize   int
	maxSize   int
	now       func() time.Time
}

func New(uploadDir string, minSize, maxSize int) (*Store, error) {
	if maxSize <= 0 || minSize < 0 || minSize > maxSize {
		return nil, errors.New("invalid paste size bounds")
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &Store{
		pastes:    make(map[string]*domain.Paste),
		uploadDir: uploadDir,
		minSize:   minSize,
		maxSize:   maxSize,
		now:       time.Now,
	}, nil
}

// HashID derives the default paste ID from content. The digest is truncated;
// it only needs to spread well, accidental collisions are accepted.
func HashID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:8])
}

// CreateText stores a text paste and returns it. The ID is the content hash
// unless a privileged poster requested a free alias; a taken or unprivileged
// alias falls back to the hash ID without comment. Size bounds are skipped
// for privileged posters. Posting identical content twice yields the same
// entry rather than a second copy.
func (s *Store) CreateText(content, posterIP, credential, alias string, privileged bool) (domain.Paste, error) {
	if !privileged {
		if len(content) > s.maxSize {
			return domain.Paste{}, domain.ErrPasteTooLarge
		}
		if len(content) < s.minSize {
			return domain.Paste{}, domain.ErrPasteTooSmall
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := HashID([]byte(content))
	if privileged && alias != "" {
		if _, taken := s.pastes[alias]; !taken {
			id = alias
		}
	}

	if existing, ok := s.pastes[id]; ok {
		return *existing, nil
	}

	now := s.now()
	p := &domain.Paste{
		ID:         id,
		Text:       content,
		CreatedAt:  now,
		PosterIP:   posterIP,
		PosterHash: credential,
		LastViewed: now,
	}
	s.pastes[id] = p
	return *p, nil
}

// CreateFile writes the uploaded bytes under the upload directory and tracks
// them as a paste keyed by the hash of the bytes. An existing file at the
// destination is never overwritten. Content already tracked returns the
// existing entry before anything touches disk, so duplicates cannot strand
// an untracked file. The write happens under the lock; uploads are rare
// enough that serializing them beats racing the existence check.
func (s *Store) CreateFile(filename string, data []byte, posterIP, credential string) (domain.Paste, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := HashID(data)
	if existing, ok := s.pastes[id]; ok {
		return *existing, nil
	}

	dest := filepath.Join(s.uploadDir, filepath.Base(filename))
	if _, err := os.Stat(dest); err == nil {
		return domain.Paste{}, domain.ErrAlreadyExists
	} else if !os.IsNotExist(err) {
		return domain.Paste{}, errors.Wrap(err, "stat upload destination")
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return domain.Paste{}, errors.Wrap(err, "write upload")
	}

	now := s.now()
	p := &domain.Paste{
		ID:         id,
		FilePath:   dest,
		IsFile:     true,
		CreatedAt:  now,
		PosterIP:   posterIP,
		PosterHash: credential,
		LastViewed: now,
	}
	s.pastes[id] = p
	return *p, nil
}

// View returns the paste and counts the access. Views are metrics, not pure
// reads; the bump is part of the contract.
func (s *Store) View(id string) (domain.Paste, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pastes[id]
	if !ok {
		return domain.Paste{}, false
	}
	p.Views++
	p.LastViewed = s.now()
	return *p, true
}

// Download is View for the download counter.
func (s *Store) Download(id string) (domain.Paste, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pastes[id]
	if !ok {
		return domain.Paste{}, false
	}
	p.Downloads++
	p.LastDownloaded = s.now()
	return *p, true
}

// Delete removes a paste unconditionally and reports whether one existed.
// File bytes are removed best effort.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pastes[id]
	if !ok {
		return false
	}
	delete(s.pastes, id)
	if p.IsFile && p.FilePath != "" {
		if err := os.Remove(p.FilePath); err != nil && !os.IsNotExist(err) {
			util.Warn().Err(err).Str("path", p.FilePath).Msg("failed to remove paste file")
		}
	}
	return true
}

// SweepStale evicts every paste not viewed within maxAge and returns how
// many were removed. Runs from the background sweeper, never inline with a
// request.
func (s *Store) SweepStale(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, p := range s.pastes {
		if p.LastViewed.Before(cutoff) {
			delete(s.pastes, id)
			removed++
			if p.IsFile && p.FilePath != "" {
				if err := os.Remove(p.FilePath); err != nil && !os.IsNotExist(err) {
					util.Warn().Err(err).Str("path", p.FilePath).Msg("failed to remove stale paste file")
				}
			}
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pastes)
}

// Snapshot copies all paste metadata for serialization outside the lock.
func (s *Store) Snapshot() map[string]domain.Paste {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Paste, len(s.pastes))
	for id, p := range s.pastes {
		out[id] = *p
	}
	return out
}

// Load replaces the store's contents with a restored snapshot.
func (s *Store) Load(pastes map[string]domain.Paste) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pastes = make(map[string]*domain.Paste, len(pastes))
	for id, p := range pastes {
		cp := p
		s.pastes[id] = &cp
	}
}
