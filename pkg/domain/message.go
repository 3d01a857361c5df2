package domain

import (
	"time"
)

// Message is a single entry in a client's ledger. UserHash is empty for
// public messages; a non-empty hash scopes visibility to viewers presenting
// the same login credential.
type Message struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"time_stamp"`
	UserHash  string    `json:"user_hash,omitempty"`
}

// ClientRecord is the per-IP value of the ledger map: every message that
// client has posted plus the time of their last accepted post. LastTimePost
// only moves backwards on an explicit admin cooldown reset.
type ClientRecord struct {
	Messages     []Message `json:"messages"`
	LastTimePost time.Time `json:"last_time_post"`
}

// Clone deep-copies the record so snapshots can be serialized outside the
// registry lock.
func (c ClientRecord) Clone() ClientRecord {
	out := ClientRecord{LastTimePost: c.LastTimePost}
	if len(c.Messages) > 0 {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}
