package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrUnauthorized        = fmt.Errorf("unauthorized")
	ErrMissingAccessToken  = fmt.Errorf("access token missing")
	ErrMissingRefreshToken = fmt.Errorf("refresh token missing")
	ErrMissingAuthCode     = fmt.Errorf("authorization code missing")
	ErrMissingCallbackURL  = fmt.Errorf("callback URL missing")
	ErrSessionFailed       = fmt.Errorf("login session failed")
	ErrTimeout             = fmt.Errorf("operation timed out")
	ErrInvalidTransition   = fmt.Errorf("invalid session transition")

	// API and service errors
	ErrInvalidResponse    = fmt.Errorf("invalid response")
	ErrHTTPStatus         = fmt.Errorf("unexpected HTTP status")
	ErrDecodingFailed     = fmt.Errorf("decoding failed")
	ErrNoCurrentTrack     = fmt.Errorf("no track currently playing")
	ErrDuplicateTrack     = fmt.Errorf("track already in playlist")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Storage errors
	ErrScopeUnavailable   = fmt.Errorf("storage scope unavailable")
	ErrNotFound           = fmt.Errorf("not found")
	ErrNoPlaylistSelected = fmt.Errorf("no playlist selected")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// HTTPStatusError is returned for any non-2xx response other than 401.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("spotify responded with status %d", e.Code)
}

func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// DecodingError keeps the underlying parse error for diagnostics.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDecodingFailed, e.Err)
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

func (e *DecodingError) Is(target error) bool {
	return target == ErrDecodingFailed
}

// DuplicateTrackError carries the metadata of the track that was already present
// so callers can show exactly what the user tried to re-add.
type DuplicateTrackError struct {
	Name       string
	Artist     string
	ArtworkURL string
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("%v: %s by %s", ErrDuplicateTrack, e.Name, e.Artist)
}

func (e *DuplicateTrackError) Is(target error) bool {
	return target == ErrDuplicateTrack
}

// Kind names the taxonomy bucket of err, for logging and outcome strings.
func Kind(err error) string {
	var dup *DuplicateTrackError
	var status *HTTPStatusError

	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrMissingAccessToken):
		return "missing_access_token"
	case errors.Is(err, ErrMissingRefreshToken):
		return "missing_refresh_token"
	case errors.Is(err, ErrNoCurrentTrack):
		return "no_current_track"
	case errors.As(err, &dup):
		return "duplicate_track"
	case errors.As(err, &status):
		return fmt.Sprintf("http_status_%d", status.Code)
	case errors.Is(err, ErrDecodingFailed):
		return "decoding_failed"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrMissingAuthCode):
		return "missing_auth_code"
	case errors.Is(err, ErrMissingCallbackURL):
		return "missing_callback_url"
	case errors.Is(err, ErrSessionFailed):
		return "session_failed"
	case errors.Is(err, ErrNoPlaylistSelected):
		return "no_playlist_selected"
	default:
		return "unknown"
	}
}

// IsAuthError reports whether err means the user has to log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrMissingAccessToken) ||
		errors.Is(err, ErrMissingRefreshToken)
}
