package credentials

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// DualStore prefers a shared scope and falls back to a private one.
//
// Reads try the shared scope first. Writes and deletes are applied to both scopes so a later
// fallback read never returns a value the shared scope has already replaced or removed.
type DualStore struct {
	shared   Scope
	private  Scope
	sharedOK bool
	logger   *log.Logger
}

// NewDualStore probes shared once; if it is unavailable the store runs on private alone.
//
// A nil shared scope is treated as unavailable.
func NewDualStore(shared, private Scope, logger *log.Logger) *DualStore {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	d := &DualStore{shared: shared, private: private, logger: logger}
	if shared != nil {
		if err := shared.Available(); err != nil {
			logger.Warn("shared credential scope unavailable, using private scope", "shared", shared.Name(), "private", private.Name(), "error", err)
		} else {
			d.sharedOK = true
		}
	}
	return d
}

// SharedAvailable reports whether the shared scope passed its probe.
func (d *DualStore) SharedAvailable() bool {
	return d.sharedOK
}

// ActiveScope names the scope reads are served from first.
func (d *DualStore) ActiveScope() string {
	if d.sharedOK {
		return d.shared.Name()
	}
	return d.private.Name()
}

func (d *DualStore) Read(f Field) (string, bool, error) {
	if d.sharedOK {
		v, ok, err := d.shared.Read(f)
		if err == nil && ok {
			return v, true, nil
		}
		if err != nil {
			d.logger.Debug("shared read failed, trying private scope", "field", f, "error", err)
		}
	}
	return d.private.Read(f)
}

// Write succeeds when at least one scope accepts the value.
func (d *DualStore) Write(f Field, value string) error {
	var sharedErr error
	if d.sharedOK {
		sharedErr = d.shared.Write(f, value)
		if sharedErr != nil {
			d.logger.Warn("shared write failed, falling back to private scope", "field", f, "error", sharedErr)
		}
	}

	privateErr := d.private.Write(f, value)
	switch {
	case privateErr == nil:
		return nil
	case d.sharedOK && sharedErr == nil:
		d.logger.Warn("private mirror write failed", "field", f, "error", privateErr)
		return nil
	default:
		return fmt.Errorf("failed to write %s: %w", f, errors.Join(sharedErr, privateErr))
	}
}

// Delete is attempted on both scopes.
func (d *DualStore) Delete(f Field) error {
	var errs []error
	if d.shared != nil {
		if err := d.shared.Delete(f); err != nil && d.sharedOK {
			errs = append(errs, err)
		}
	}
	if err := d.private.Delete(f); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DeleteAll is attempted on both scopes.
func (d *DualStore) DeleteAll() error {
	var errs []error
	if d.shared != nil {
		if err := d.shared.DeleteAll(); err != nil && d.sharedOK {
			errs = append(errs, err)
		}
	}
	if err := d.private.DeleteAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Migrate copies private values into the shared scope when the shared scope holds no
// tokens yet. It reports whether anything was copied and is a no-op once migrated.
func (d *DualStore) Migrate() (bool, error) {
	if !d.sharedOK {
		return false, nil
	}

	for _, f := range []Field{AccessToken, RefreshToken} {
		_, ok, err := d.shared.Read(f)
		if err != nil {
			return false, fmt.Errorf("failed to inspect shared scope: %w", err)
		}
		if ok {
			return false, nil
		}
	}

	copied := false
	for _, f := range Fields {
		v, ok, err := d.private.Read(f)
		if err != nil {
			return copied, fmt.Errorf("failed to read private %s: %w", f, err)
		}
		if !ok {
			continue
		}
		if err := d.shared.Write(f, v); err != nil {
			return copied, fmt.Errorf("failed to migrate %s: %w", f, err)
		}
		copied = true
	}

	if copied {
		d.logger.Info("migrated credentials to shared scope", "scope", d.shared.Name())
	}
	return copied, nil
}
