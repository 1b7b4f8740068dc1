// Package credentials persists the signed-in user's OAuth tokens.
//
// A [DualStore] combines a shared scope (the system keyring, visible to every process of the
// user) with a private scope (a file under the config directory) and falls back to the private
// scope when the keyring cannot be used.
package credentials

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field names one of the persisted credential values.
type Field int

const (
	AccessToken Field = iota
	RefreshToken
	AccessTokenExpiry
)

// Fields lists every credential field.
var Fields = []Field{AccessToken, RefreshToken, AccessTokenExpiry}

// Key returns the storage key of the field.
func (f Field) Key() string {
	switch f {
	case AccessToken:
		return "access_token"
	case RefreshToken:
		return "refresh_token"
	case AccessTokenExpiry:
		return "access_token_expiry"
	default:
		return fmt.Sprintf("field_%d", int(f))
	}
}

func (f Field) String() string { return f.Key() }

// Store is durable key/value storage for the credential fields.
//
// Read reports ok=false when the field is absent; absence is not an error.
type Store interface {
	Read(f Field) (value string, ok bool, err error)
	Write(f Field, value string) error
	Delete(f Field) error
	DeleteAll() error
}

// Scope is a single backing location for a [Store].
type Scope interface {
	Store
	Name() string
	// Available reports whether the scope can currently be written.
	Available() error
}

// Record is the typed view of the three credential fields.
//
// Empty strings and a zero Expiry mean the value is absent.
type Record struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Empty reports whether the record holds no token at all.
func (r Record) Empty() bool {
	return r.AccessToken == "" && r.RefreshToken == ""
}

// Load reads all credential fields from s.
//
// An expiry that cannot be parsed is reported as zero so the access token is treated as expired.
func Load(s Store) (Record, error) {
	var rec Record

	access, ok, err := s.Read(AccessToken)
	if err != nil {
		return rec, err
	}
	if ok {
		rec.AccessToken = access
	}

	refresh, ok, err := s.Read(RefreshToken)
	if err != nil {
		return rec, err
	}
	if ok {
		rec.RefreshToken = refresh
	}

	rec.Expiry, err = ReadExpiry(s)
	return rec, err
}

// ReadExpiry returns the stored access-token expiry, or the zero time.
func ReadExpiry(s Store) (time.Time, error) {
	raw, ok, err := s.Read(AccessTokenExpiry)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return ParseExpiry(raw), nil
}

// SaveRecord writes the access token, its expiry and, when present, the refresh token.
func SaveRecord(s Store, rec Record) error {
	if err := s.Write(AccessToken, rec.AccessToken); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	if err := s.Write(AccessTokenExpiry, FormatExpiry(rec.Expiry)); err != nil {
		return fmt.Errorf("failed to save token expiry: %w", err)
	}
	if rec.RefreshToken != "" {
		if err := s.Write(RefreshToken, rec.RefreshToken); err != nil {
			return fmt.Errorf("failed to save refresh token: %w", err)
		}
	}
	return nil
}

// DeleteAccessToken removes the access token and its expiry, leaving the refresh token.
func DeleteAccessToken(s Store) error {
	if err := s.Delete(AccessToken); err != nil {
		return err
	}
	return s.Delete(AccessTokenExpiry)
}

// FormatExpiry encodes t as fractional Unix seconds.
func FormatExpiry(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', -1, 64)
}

// ParseExpiry decodes a value written by [FormatExpiry].
func ParseExpiry(raw string) time.Time {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return time.Time{}
	}
	return time.UnixMilli(int64(math.Round(secs * 1000)))
}
