package domain

import (
	"time"
)

// Paste is either inline text or a reference to an uploaded file. The ID is
// the content hash by default, or a caller-chosen alias for privileged
// posters. Content never changes after creation; counters and the
// last-accessed timestamps do.
type Paste struct {
	ID             string    `json:"id"`
	Text           string    `json:"text,omitempty"`
	FilePath       string    `json:"file_path,omitempty"`
	IsFile         bool      `json:"is_file,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	PosterIP       string    `json:"poster_ip"`
	PosterHash     string    `json:"poster_hash,omitempty"`
	Views          uint32    `json:"views"`
	Downloads      uint32    `json:"downloads"`
	LastViewed     time.Time `json:"last_viewed"`
	LastDownloaded time.Time `json:"last_downloaded,omitzero"`
}
