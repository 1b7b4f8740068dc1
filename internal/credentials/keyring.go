package credentials

import (
	"errors"
	"fmt"

	"github.com/desertthunder/tracksaver/internal/shared"
	"github.com/zalando/go-keyring"
)

const probeKey = "tracksaver::probe"

// KeyringScope stores each field as a separate system keyring entry under one service name.
type KeyringScope struct {
	service string
}

// NewKeyringScope creates a keyring-backed scope for service.
func NewKeyringScope(service string) *KeyringScope {
	if service == "" {
		service = "tracksaver"
	}
	return &KeyringScope{service: service}
}

func (k *KeyringScope) Name() string { return "keyring:" + k.service }

// Available writes and removes a probe entry.
func (k *KeyringScope) Available() error {
	if err := keyring.Set(k.service, probeKey, "probe"); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrScopeUnavailable, err)
	}
	_ = keyring.Delete(k.service, probeKey)
	return nil
}

func (k *KeyringScope) Read(f Field) (string, bool, error) {
	value, err := keyring.Get(k.service, f.Key())
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", shared.ErrScopeUnavailable, err)
	}
	return value, true, nil
}

func (k *KeyringScope) Write(f Field, value string) error {
	if err := keyring.Set(k.service, f.Key(), value); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrScopeUnavailable, err)
	}
	return nil
}

func (k *KeyringScope) Delete(f Field) error {
	err := keyring.Delete(k.service, f.Key())
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: %v", shared.ErrScopeUnavailable, err)
}

func (k *KeyringScope) DeleteAll() error {
	var errs []error
	for _, f := range Fields {
		if err := k.Delete(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
