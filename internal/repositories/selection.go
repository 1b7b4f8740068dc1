package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/shared"
)

// SelectionRepository stores the playlist chosen for each slot.
type SelectionRepository struct {
	db *sql.DB
}

// NewSelectionRepository creates a new [SelectionRepository] with the given database connection
func NewSelectionRepository(db *sql.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// Set creates the slot row on first choice and updates it on reselect.
func (r *SelectionRepository) Set(ctx context.Context, slot int, playlistID string) (*models.Selection, error) {
	sel := models.NewSelection(slot, playlistID)
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlist_selections (slot, playlist_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET playlist_id = excluded.playlist_id, updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, sel.Slot, sel.PlaylistID, sel.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to save selection: %w", err)
	}
	return sel, nil
}

// Get returns the selection for slot or an error matching [shared.ErrNotFound].
func (r *SelectionRepository) Get(ctx context.Context, slot int) (*models.Selection, error) {
	query := `SELECT slot, playlist_id, updated_at FROM playlist_selections WHERE slot = ?`

	var sel models.Selection
	err := r.db.QueryRowContext(ctx, query, slot).Scan(&sel.Slot, &sel.PlaylistID, &sel.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("selection for slot %d: %w", slot, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query selection: %w", err)
	}
	return &sel, nil
}

// PlaylistID returns the playlist for slot, or "" when the slot was never chosen.
func (r *SelectionRepository) PlaylistID(ctx context.Context, slot int) (string, error) {
	sel, err := r.Get(ctx, slot)
	if errors.Is(err, shared.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sel.PlaylistID, nil
}

// Clear removes the choice for slot.
func (r *SelectionRepository) Clear(ctx context.Context, slot int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM playlist_selections WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	return affected(result, fmt.Sprintf("selection for slot %d", slot))
}

// List returns every chosen slot ordered by slot number.
func (r *SelectionRepository) List(ctx context.Context) ([]*models.Selection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT slot, playlist_id, updated_at FROM playlist_selections ORDER BY slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}
	defer rows.Close()

	var selections []*models.Selection
	for rows.Next() {
		var (
			slot       int
			playlistID string
			updatedAt  time.Time
		)
		if err := rows.Scan(&slot, &playlistID, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, &models.Selection{Slot: slot, PlaylistID: playlistID, UpdatedAt: updatedAt})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return selections, nil
}
