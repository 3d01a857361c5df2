// Package access holds the admin, ban and verification registries. Admin
// rights are claimed once: the first credential ever submitted becomes the
// admin set, and from then on only credentials already in the set pass.
package access

import (
	"sync"

	"pinwall/pkg/domain"
	"pinwall/svc/util"
)

// Outcome of an admin claim attempt.
type Outcome int

const (
	BecameAdmin Outcome = iota
	AlreadyAdmin
	NotAdmin
)

func (o Outcome) String() string {
	switch o {
	case BecameAdmin:
		return "became_admin"
	case AlreadyAdmin:
		return "already_admin"
	default:
		return "not_admin"
	}
}

type Registry struct {
	mu     sync.RWMutex
	state  domain.AdminState
	banned []string
}

func New() *Registry {
	return &Registry{}
}

// BootstrapOrCheck claims admin for the first credential ever submitted.
// The transition is one-shot: once AdminCreated is set, later credentials
// are only checked against the existing set and never added.
func (r *Registry) BootstrapOrCheck(credential string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.AdminCreated {
		r.state.AdminCreated = true
		r.state.AdminHashes = append(r.state.AdminHashes, credential)
		return BecameAdmin
	}
	for _, h := range r.state.AdminHashes {
		if h == credential {
			return AlreadyAdmin
		}
	}
	return NotAdmin
}

func (r *Registry) IsAdmin(credential string) bool {
	if credential == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.state.AdminHashes {
		if h == credential {
			return true
		}
	}
	return false
}

// Ban adds ip to the ban list. Anything that is not four dot-separated
// octets is dropped on the floor rather than reported; the caller already
// validated admin rights and a malformed IP simply does nothing.
func (r *Registry) Ban(ip string) {
	if !util.ValidIPv4(ip) {
		util.Warn().Str("ip", ip).Msg("ignoring ban of malformed IP")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.banned {
		if b == ip {
			return
		}
	}
	r.banned = append(r.banned, ip)
}

// Unban removes ip from the ban list, with the same silent treatment of
// malformed input as Ban.
func (r *Registry) Unban(ip string) {
	if !util.ValidIPv4(ip) {
		util.Warn().Str("ip", ip).Msg("ignoring unban of malformed IP")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.banned {
		if b == ip {
			r.banned = append(r.banned[:i], r.banned[i+1:]...)
			return
		}
	}
}

func (r *Registry) IsBanned(ip string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.banned {
		if b == ip {
			return true
		}
	}
	return false
}

// AddVerified marks an identity (IP or credential hash) as verified.
// Entries skip IP syntax validation since credentials are legal here.
func (r *Registry) AddVerified(identity string) {
	if identity == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.state.VerifiedList {
		if v == identity {
			return
		}
	}
	r.state.VerifiedList = append(r.state.VerifiedList, identity)
}

func (r *Registry) RemoveVerified(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.state.VerifiedList {
		if v == identity {
			r.state.VerifiedList = append(r.state.VerifiedList[:i], r.state.VerifiedList[i+1:]...)
			return
		}
	}
}

// IsVerified checks an identity against the verified list. A nil list means
// verification was never used, so nobody is verified.
func (r *Registry) IsVerified(identity string) bool {
	if identity == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.state.VerifiedList {
		if v == identity {
			return true
		}
	}
	return false
}

// Snapshot copies the admin state and ban list for serialization outside
// the lock.
func (r *Registry) Snapshot() (domain.AdminState, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	banned := append([]string(nil), r.banned...)
	return r.state.Clone(), banned
}

// Load replaces the registry's contents with a restored snapshot.
func (r *Registry) Load(state domain.AdminState, banned []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state.Clone()
	r.banned = append([]string(nil), banned...)
}
