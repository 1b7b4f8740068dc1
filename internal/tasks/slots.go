package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/shared"
)

// SelectionReader looks up the playlist chosen for a slot; "" means none.
type SelectionReader interface {
	PlaylistID(ctx context.Context, slot int) (string, error)
}

// SelectionWriter stores the playlist for a slot.
type SelectionWriter interface {
	SelectionReader
	Set(ctx context.Context, slot int, playlistID string) (*models.Selection, error)
}

// SlotPolicy splits the day into shortcut slots starting at each boundary hour.
type SlotPolicy struct {
	Enabled    bool
	Boundaries []int // ascending hours, one per slot
	// Inclusive puts a boundary hour in the slot it starts. Otherwise it closes the previous slot.
	Inclusive bool
}

// DefaultSlotPolicy is the three-way eight hour split.
func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{Enabled: true, Boundaries: []int{0, 8, 16}, Inclusive: true}
}

// SlotPolicyFrom builds a policy from the [slots] config section.
func SlotPolicyFrom(c shared.SlotsConfig) SlotPolicy {
	return SlotPolicy{Enabled: c.Enabled, Boundaries: c.Boundaries, Inclusive: c.Inclusive}
}

// Count is the number of shortcut slots.
func (p SlotPolicy) Count() int { return len(p.Boundaries) }

// Resolve returns the 1-based slot whose window contains t's hour, or 0 when the policy
// has no boundaries. Hours before the first boundary wrap around to the last slot.
func (p SlotPolicy) Resolve(t time.Time) int {
	n := len(p.Boundaries)
	if n == 0 {
		return 0
	}

	hour := t.Hour()
	slot := n
	for i, b := range p.Boundaries {
		if b < hour || (p.Inclusive && b == hour) {
			slot = i + 1
		}
	}
	return slot
}

// Window describes slot's hours as "[08:00, 16:00)" style text.
func (p SlotPolicy) Window(slot int) string {
	n := len(p.Boundaries)
	if slot < 1 || slot > n {
		return ""
	}
	start, end := p.Boundaries[slot-1], p.Boundaries[slot%n]
	if p.Inclusive {
		return fmt.Sprintf("[%02d:00, %02d:00)", start, end)
	}
	return fmt.Sprintf("(%02d:00, %02d:00]", start, end)
}

// ResolvePlaylistID picks the playlist a save should target.
//
// An explicit slot uses that slot, falling back to the default slot. A nil slot uses the
// time-of-day slot when the policy is enabled, falling back the same way.
func ResolvePlaylistID(ctx context.Context, repo SelectionReader, policy SlotPolicy, slot *int, now time.Time) (string, error) {
	target := models.DefaultSlot
	switch {
	case slot != nil:
		target = *slot
	case policy.Enabled:
		target = policy.Resolve(now)
	}

	if target != models.DefaultSlot {
		id, err := repo.PlaylistID(ctx, target)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}

	id, err := repo.PlaylistID(ctx, models.DefaultSlot)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", shared.ErrNoPlaylistSelected
	}
	return id, nil
}

// MigrateDefaultPlaylist copies a legacy config playlist into the default slot once,
// only while that slot is empty. It reports whether a row was written.
func MigrateDefaultPlaylist(ctx context.Context, repo SelectionWriter, legacyID string) (bool, error) {
	if legacyID == "" {
		return false, nil
	}

	current, err := repo.PlaylistID(ctx, models.DefaultSlot)
	if err != nil {
		return false, err
	}
	if current != "" {
		return false, nil
	}

	if _, err := repo.Set(ctx, models.DefaultSlot, legacyID); err != nil {
		return false, fmt.Errorf("failed to migrate default playlist: %w", err)
	}
	return true, nil
}
