package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/credentials"
	"github.com/desertthunder/tracksaver/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RefreshSkew is the minimum remaining lifetime for a cached access token to be reused.
const RefreshSkew = 60 * time.Second

// RefreshTimeout bounds a shared refresh exchange independently of any one caller.
const RefreshTimeout = 30 * time.Second

// TokenSourceOpts configures a [TokenSource].
type TokenSourceOpts struct {
	Config     Config
	Store      credentials.Store
	Locker     *credentials.Locker // optional, serializes refreshes across processes
	Clock      shared.Clock
	HTTPClient *http.Client
	Logger     *log.Logger
}

// TokenSource hands out access tokens, refreshing them through the token endpoint when needed.
type TokenSource struct {
	oauth  *oauth2.Config
	store  credentials.Store
	locker *credentials.Locker
	clock  shared.Clock
	client *http.Client
	logger *log.Logger
	group  singleflight.Group
}

// NewTokenSource creates a [TokenSource].
func NewTokenSource(opts TokenSourceOpts) *TokenSource {
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &TokenSource{
		oauth:  opts.Config.OAuth2(),
		store:  opts.Store,
		locker: opts.Locker,
		clock:  opts.Clock,
		client: opts.HTTPClient,
		logger: opts.Logger,
	}
}

// AccessToken returns a token valid for at least [RefreshSkew].
//
// Concurrent callers that find the cache stale share a single refresh exchange.
func (s *TokenSource) AccessToken(ctx context.Context) (string, error) {
	if tok, ok, err := s.cached(); err != nil {
		return "", err
	} else if ok {
		return tok, nil
	}

	// The flight outlives its first caller; each caller still stops waiting on its own ctx.
	ch := s.group.DoChan("refresh", func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()
		return s.refresh(flightCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight token refresh")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate forgets the access token so the next call refreshes. The refresh token is kept.
func (s *TokenSource) Invalidate() error {
	s.logger.Debug("invalidating cached access token")
	return credentials.DeleteAccessToken(s.store)
}

// SignedIn reports whether any token material is stored.
func (s *TokenSource) SignedIn() (bool, error) {
	rec, err := credentials.Load(s.store)
	if err != nil {
		return false, err
	}
	return !rec.Empty(), nil
}

func (s *TokenSource) cached() (string, bool, error) {
	rec, err := credentials.Load(s.store)
	if err != nil {
		return "", false, err
	}
	if rec.AccessToken == "" || rec.Expiry.IsZero() {
		return "", false, nil
	}
	if rec.Expiry.Sub(s.clock.Now()) <= RefreshSkew {
		return "", false, nil
	}
	return rec.AccessToken, true, nil
}

func (s *TokenSource) refresh(ctx context.Context) (string, error) {
	if tok, ok, err := s.cached(); err != nil || ok {
		return tok, err
	}

	release, acquired, err := s.locker.Lock(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if acquired {
		// another process may have refreshed while we waited
		if tok, ok, err := s.cached(); err != nil || ok {
			return tok, err
		}
	}

	rt, ok, err := s.store.Read(credentials.RefreshToken)
	if err != nil {
		return "", err
	}
	if !ok || rt == "" {
		return "", fmt.Errorf("%w: %w", shared.ErrMissingAccessToken, shared.ErrMissingRefreshToken)
	}

	s.logger.Info("refreshing access token", "locked", acquired)

	ctx = withHTTPClient(ctx, s.client)
	tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		return "", tokenError(err)
	}

	rec := recordFromToken(tok, s.clock.Now())
	if rec.RefreshToken == rt {
		rec.RefreshToken = ""
	}
	if err := credentials.SaveRecord(s.store, rec); err != nil {
		return "", err
	}

	s.logger.Info("access token refreshed", "expires", rec.Expiry.Format(time.RFC3339), "rotated", rec.RefreshToken != "")
	return rec.AccessToken, nil
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// recordFromToken computes the expiry as now + expires_in so an injected clock is honored.
func recordFromToken(tok *oauth2.Token, now time.Time) credentials.Record {
	rec := credentials.Record{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}

	if secs := expiresIn(tok); secs > 0 {
		rec.Expiry = now.Add(time.Duration(secs) * time.Second)
	} else {
		rec.Expiry = tok.Expiry
	}
	return rec
}

func expiresIn(tok *oauth2.Token) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// tokenError maps oauth2 failures onto the shared taxonomy.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := 0
		if re.Response != nil {
			code = re.Response.StatusCode
		}
		return &shared.HTTPStatusError{Code: code}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidResponse, err)
	}
	return &shared.DecodingError{Err: err}
}
