// package models defines the persisted records of the track saver
package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/tracksaver/internal/shared"
)

// Model defines the base interface for persisted records.
type Model interface {
	Validate() error // Validate checks the record before it is written
}

// DefaultSlot holds the playlist used when no shortcut slot applies.
const DefaultSlot = 0

// Selection maps a slot to the playlist tracks are saved into.
type Selection struct {
	Slot       int       `json:"slot"`
	PlaylistID string    `json:"playlist_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewSelection creates a [Selection] stamped with the current time.
func NewSelection(slot int, playlistID string) *Selection {
	return &Selection{Slot: slot, PlaylistID: playlistID, UpdatedAt: time.Now().UTC()}
}

func (s *Selection) Validate() error {
	if s.Slot < 0 {
		return fmt.Errorf("%w: slot %d", shared.ErrInvalidArgument, s.Slot)
	}
	if s.PlaylistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	return nil
}

// Status is the result of one save attempt as recorded in history.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFail      Status = "fail"
	StatusDuplicate Status = "duplicate"
	StatusNoTrack   Status = "no_track"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFail, StatusDuplicate, StatusNoTrack:
		return true
	}
	return false
}

// HistoryEntry records one save attempt for a user.
type HistoryEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	TrackID      string    `json:"track_id,omitempty"`
	TrackName    string    `json:"track_name"`
	ArtistName   string    `json:"artist_name"`
	ArtworkURL   string    `json:"artwork_url,omitempty"`
	PlaylistID   string    `json:"playlist_id"`
	PlaylistName string    `json:"playlist_name,omitempty"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *HistoryEntry) Validate() error {
	if h.UserID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}
	if h.PlaylistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if !h.Status.Valid() {
		return fmt.Errorf("%w: status %q", shared.ErrInvalidArgument, h.Status)
	}
	return nil
}
