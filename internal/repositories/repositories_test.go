package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/tracksaver/internal/models"
	"github.com/desertthunder/tracksaver/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSelectionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Set creates then updates", func(t *testing.T) {
		repo := NewSelectionRepository(setupTestDB(t))

		if _, err := repo.Set(ctx, models.DefaultSlot, "pl-1"); err != nil {
			t.Fatalf("failed to set selection: %v", err)
		}
		if _, err := repo.Set(ctx, models.DefaultSlot, "pl-2"); err != nil {
			t.Fatalf("failed to reselect: %v", err)
		}

		sel, err := repo.Get(ctx, models.DefaultSlot)
		if err != nil {
			t.Fatalf("failed to get selection: %v", err)
		}
		if sel.PlaylistID != "pl-2" {
			t.Errorf("expected pl-2, got %s", sel.PlaylistID)
		}
		if sel.UpdatedAt.IsZero() {
			t.Error("updated_at should be set")
		}

		all, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("reselect should not add a row, got %d rows", len(all))
		}
	})

	t.Run("Set validates", func(t *testing.T) {
		repo := NewSelectionRepository(setupTestDB(t))

		if _, err := repo.Set(ctx, 1, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := repo.Set(ctx, -1, "pl"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewSelectionRepository(setupTestDB(t))

		if _, err := repo.Get(ctx, 2); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		id, err := repo.PlaylistID(ctx, 2)
		if err != nil || id != "" {
			t.Errorf("expected empty id without error, got %q, %v", id, err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewSelectionRepository(setupTestDB(t))

		if _, err := repo.Set(ctx, 1, "pl-1"); err != nil {
			t.Fatalf("failed to set selection: %v", err)
		}
		if err := repo.Clear(ctx, 1); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if err := repo.Clear(ctx, 1); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("second clear should be ErrNotFound, got %v", err)
		}
	})

	t.Run("List orders by slot", func(t *testing.T) {
		repo := NewSelectionRepository(setupTestDB(t))

		for _, slot := range []int{3, 0, 1} {
			if _, err := repo.Set(ctx, slot, "pl"); err != nil {
				t.Fatalf("failed to set slot %d: %v", slot, err)
			}
		}

		all, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		want := []int{0, 1, 3}
		if len(all) != len(want) {
			t.Fatalf("expected %d selections, got %d", len(want), len(all))
		}
		for i, sel := range all {
			if sel.Slot != want[i] {
				t.Errorf("position %d: expected slot %d, got %d", i, want[i], sel.Slot)
			}
		}
	})
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	entry := func(user string, status models.Status, at time.Time) *models.HistoryEntry {
		return &models.HistoryEntry{
			UserID:     user,
			TrackID:    "t1",
			TrackName:  "Song",
			ArtistName: "Artist",
			PlaylistID: "pl-1",
			Status:     status,
			CreatedAt:  at,
		}
	}

	t.Run("Add assigns id", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))

		e := entry("u1", models.StatusSuccess, time.Time{})
		if err := repo.Add(ctx, e); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
		if e.ID == "" {
			t.Error("entry ID should be set after insert")
		}
		if e.CreatedAt.IsZero() {
			t.Error("created_at should default to now")
		}
	})

	t.Run("Add validates", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))

		tests := []struct {
			name  string
			entry *models.HistoryEntry
		}{
			{"missing user", entry("", models.StatusSuccess, base)},
			{"unknown status", entry("u1", models.Status("maybe"), base)},
			{"missing playlist", &models.HistoryEntry{UserID: "u1", Status: models.StatusFail}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := repo.Add(ctx, tt.entry); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("ListByUser newest first", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))

		statuses := []models.Status{models.StatusSuccess, models.StatusDuplicate, models.StatusNoTrack}
		for i, s := range statuses {
			if err := repo.Add(ctx, entry("u1", s, base.Add(time.Duration(i)*time.Minute))); err != nil {
				t.Fatalf("failed to add entry: %v", err)
			}
		}
		if err := repo.Add(ctx, entry("u2", models.StatusFail, base)); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}

		got, err := repo.ListByUser(ctx, "u1", 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 entries for u1, got %d", len(got))
		}
		if got[0].Status != models.StatusNoTrack || got[2].Status != models.StatusSuccess {
			t.Errorf("expected newest first, got %s..%s", got[0].Status, got[2].Status)
		}
		if !got[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("created_at round trip: got %v", got[0].CreatedAt)
		}

		limited, err := repo.ListByUser(ctx, "u1", 2)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected limit of 2, got %d", len(limited))
		}
	})

	t.Run("Delete and Clear", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))

		keep := entry("u1", models.StatusSuccess, base)
		drop := entry("u1", models.StatusFail, base.Add(time.Second))
		other := entry("u2", models.StatusSuccess, base)
		for _, e := range []*models.HistoryEntry{keep, drop, other} {
			if err := repo.Add(ctx, e); err != nil {
				t.Fatalf("failed to add entry: %v", err)
			}
		}

		if err := repo.Delete(ctx, drop.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(ctx, drop.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		n, err := repo.Clear(ctx, "u1")
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 cleared entry, got %d", n)
		}

		rest, err := repo.ListByUser(ctx, "u2", 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(rest) != 1 {
			t.Errorf("clear must not touch other users, got %d entries for u2", len(rest))
		}
	})
}
