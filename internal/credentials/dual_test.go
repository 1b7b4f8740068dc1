package credentials

import (
	"errors"
	"testing"

	"github.com/desertthunder/tracksaver/internal/shared"
)

func newDual(t *testing.T, sharedErr error) (*DualStore, *MemoryScope, *MemoryScope) {
	t.Helper()
	sharedScope := NewMemoryScope("shared")
	private := NewMemoryScope("private")
	if sharedErr != nil {
		sharedScope.SetUnavailable(sharedErr)
	}
	return NewDualStore(sharedScope, private, nil), sharedScope, private
}

func TestDualStore(t *testing.T) {
	t.Run("probe selects active scope", func(t *testing.T) {
		d, _, _ := newDual(t, nil)
		if !d.SharedAvailable() || d.ActiveScope() != "memory:shared" {
			t.Errorf("expected shared scope active, got %s", d.ActiveScope())
		}

		d, _, _ = newDual(t, shared.ErrScopeUnavailable)
		if d.SharedAvailable() || d.ActiveScope() != "memory:private" {
			t.Errorf("expected private scope active, got %s", d.ActiveScope())
		}
	})

	t.Run("writes mirror to both scopes", func(t *testing.T) {
		d, sharedScope, private := newDual(t, nil)

		if err := d.Write(AccessToken, "a1"); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		for _, s := range []*MemoryScope{sharedScope, private} {
			if v, ok, _ := s.Read(AccessToken); !ok || v != "a1" {
				t.Errorf("%s: expected a1, got %q", s.Name(), v)
			}
		}
	})

	t.Run("reads prefer shared scope", func(t *testing.T) {
		d, sharedScope, private := newDual(t, nil)
		_ = sharedScope.Write(RefreshToken, "from-shared")
		_ = private.Write(RefreshToken, "from-private")

		if v, _, _ := d.Read(RefreshToken); v != "from-shared" {
			t.Errorf("expected shared value, got %q", v)
		}
	})

	t.Run("reads fall back to private when shared lacks a field", func(t *testing.T) {
		d, _, private := newDual(t, nil)
		_ = private.Write(RefreshToken, "from-private")

		if v, ok, _ := d.Read(RefreshToken); !ok || v != "from-private" {
			t.Errorf("expected private value, got %q", v)
		}
	})

	t.Run("unavailable shared scope is never written", func(t *testing.T) {
		d, sharedScope, private := newDual(t, shared.ErrScopeUnavailable)

		if err := d.Write(AccessToken, "a1"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if v, ok, _ := private.Read(AccessToken); !ok || v != "a1" {
			t.Errorf("expected private to hold a1, got %q", v)
		}

		sharedScope.SetUnavailable(nil)
		if _, ok, _ := sharedScope.Read(AccessToken); ok {
			t.Error("shared scope should not have been written")
		}
	})

	t.Run("write fails only when both scopes fail", func(t *testing.T) {
		d, sharedScope, private := newDual(t, nil)
		private.SetUnavailable(errors.New("disk full"))

		if err := d.Write(AccessToken, "a1"); err != nil {
			t.Errorf("expected shared write to satisfy the store, got %v", err)
		}

		sharedScope.SetUnavailable(errors.New("locked"))
		if err := d.Write(AccessToken, "a2"); err == nil {
			t.Error("expected error when both scopes fail")
		}
	})

	t.Run("deletes apply to both scopes", func(t *testing.T) {
		d, sharedScope, private := newDual(t, nil)
		_ = d.Write(AccessToken, "a1")
		_ = d.Write(RefreshToken, "r1")

		if err := d.Delete(AccessToken); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		for _, s := range []*MemoryScope{sharedScope, private} {
			if _, ok, _ := s.Read(AccessToken); ok {
				t.Errorf("%s: access token should be deleted", s.Name())
			}
		}

		if err := d.DeleteAll(); err != nil {
			t.Fatalf("delete all failed: %v", err)
		}
		if _, ok, _ := d.Read(RefreshToken); ok {
			t.Error("refresh token should be deleted everywhere")
		}
	})

	t.Run("delete ignores unavailable shared scope", func(t *testing.T) {
		d, _, _ := newDual(t, shared.ErrScopeUnavailable)
		if err := d.DeleteAll(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

func TestDualStoreMigrate(t *testing.T) {
	t.Run("copies private values into empty shared scope", func(t *testing.T) {
		d, sharedScope, private := newDual(t, nil)
		_ = private.Write(AccessToken, "a1")
		_ = private.Write(RefreshToken, "r1")
		_ = private.Write(AccessTokenExpiry, "1700000000")

		copied, err := d.Migrate()
		if err != nil {
			t.Fatalf("migrate failed: %v", err)
		}
		if !copied {
			t.Fatal("expected values to be copied")
		}

		rec, _ := Load(sharedScope)
		if rec.AccessToken != "a1" || rec.RefreshToken != "r1" || rec.Expiry.Unix() != 1700000000 {
			t.Errorf("unexpected shared record %+v", rec)
		}

		copied, err = d.Migrate()
		if err != nil || copied {
			t.Errorf("second migrate should be a no-op, got copied=%v err=%v", copied, err)
		}
	})

	t.Run("does not overwrite shared tokens", func(t *testing.T) {
		d, sharedScope, private := newDual(t, nil)
		_ = sharedScope.Write(RefreshToken, "shared")
		_ = private.Write(RefreshToken, "private")

		copied, err := d.Migrate()
		if err != nil || copied {
			t.Fatalf("expected no-op, got copied=%v err=%v", copied, err)
		}
		if v, _, _ := sharedScope.Read(RefreshToken); v != "shared" {
			t.Errorf("shared token was overwritten with %q", v)
		}
	})

	t.Run("no-op when shared scope unavailable", func(t *testing.T) {
		d, _, private := newDual(t, shared.ErrScopeUnavailable)
		_ = private.Write(RefreshToken, "r1")

		if copied, err := d.Migrate(); err != nil || copied {
			t.Errorf("expected no-op, got copied=%v err=%v", copied, err)
		}
	})
}
