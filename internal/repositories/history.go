package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/shared"
)

// HistoryRepository stores save attempts keyed by user id.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new [HistoryRepository] with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Add inserts entry, assigning its ID and, when zero, its CreatedAt.
func (r *HistoryRepository) Add(ctx context.Context, entry *models.HistoryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	entry.ID = shared.GenerateID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	query := `
		INSERT INTO history (id, user_id, track_id, track_name, artist_name, artwork_url, playlist_id, playlist_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.TrackID, entry.TrackName, entry.ArtistName, entry.ArtworkURL,
		entry.PlaylistID, entry.PlaylistName, string(entry.Status), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// ListByUser returns up to limit entries for userID, newest first. A non-positive limit returns all.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, user_id, track_id, track_name, artist_name, artwork_url, playlist_id, playlist_name, status, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var (
			e      models.HistoryEntry
			status string
		)
		err := rows.Scan(&e.ID, &e.UserID, &e.TrackID, &e.TrackName, &e.ArtistName, &e.ArtworkURL,
			&e.PlaylistID, &e.PlaylistName, &status, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Status = models.Status(status)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Delete removes a single entry.
func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return affected(result, "history entry "+id)
}

// Clear removes every entry for userID and returns how many were deleted.
func (r *HistoryRepository) Clear(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}
