package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tracksaver/internal/credentials"
	"github.com/desertthunder/tracksaver/internal/shared"
	tu "github.com/desertthunder/tracksaver/internal/testing"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(accounts *tu.AccountsServer) Config {
	return Config{
		ClientID:    "client-123",
		RedirectURI: "http://127.0.0.1:3000/callback",
		Scopes:      []string{"user-read-currently-playing", "playlist-modify-private"},
		AuthURL:     accounts.AuthURL(),
		TokenURL:    accounts.TokenURL(),
	}
}

func TestPKCE(t *testing.T) {
	t.Run("verifier length and charset", func(t *testing.T) {
		for range 20 {
			v, err := GenerateVerifier()
			if err != nil {
				t.Fatalf("GenerateVerifier failed: %v", err)
			}
			if len(v) != VerifierLength {
				t.Fatalf("expected %d characters, got %d", VerifierLength, len(v))
			}
			for _, c := range v {
				if !strings.ContainsRune(verifierCharset, c) {
					t.Fatalf("unexpected character %q in %s", c, v)
				}
			}
		}
	})

	t.Run("verifiers differ", func(t *testing.T) {
		a, _ := GenerateVerifier()
		b, _ := GenerateVerifier()
		if a == b {
			t.Error("two verifiers should not be equal")
		}
	})

	t.Run("challenge matches RFC 7636 appendix B", func(t *testing.T) {
		got := Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
		want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("pair is consistent", func(t *testing.T) {
		p, err := NewPKCE()
		if err != nil {
			t.Fatalf("NewPKCE failed: %v", err)
		}
		if p.Challenge != Challenge(p.Verifier) || strings.ContainsAny(p.Challenge, "=+/") {
			t.Errorf("unexpected challenge %q", p.Challenge)
		}
	})
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{SignedOut, Authenticating, true},
		{Authenticating, SignedIn, true},
		{Authenticating, SignedOut, true},
		{SignedIn, SignedOut, true},
		{SignedOut, SignedIn, false},
		{SignedIn, Authenticating, false},
		{SignedOut, SignedOut, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Errorf("expected transition to be allowed, got %v", err)
			}
			if !tt.ok && !errors.Is(err, shared.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestTokenSource(t *testing.T) {
	newSource := func(t *testing.T, store credentials.Store, accounts *tu.AccountsServer, clock shared.Clock) *TokenSource {
		t.Helper()
		return NewTokenSource(TokenSourceOpts{
			Config: testConfig(accounts),
			Store:  store,
			Clock:  clock,
		})
	}

	t.Run("fresh token is returned without network", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("test")
		_ = credentials.SaveRecord(store, credentials.Record{AccessToken: "cached", RefreshToken: "r1", Expiry: epoch.Add(10 * time.Minute)})

		src := newSource(t, store, accounts, tu.NewFakeClock(epoch))
		tok, err := src.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if tok != "cached" {
			t.Errorf("expected cached token, got %s", tok)
		}
		if n := len(accounts.Requests()); n != 0 {
			t.Errorf("expected no token requests, got %d", n)
		}
	})

	t.Run("token inside skew is refreshed", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("test")
		_ = credentials.SaveRecord(store, credentials.Record{AccessToken: "stale", RefreshToken: "r1", Expiry: epoch.Add(59 * time.Second)})

		tok, err := newSource(t, store, accounts, tu.NewFakeClock(epoch)).AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if tok != "fresh-access" {
			t.Errorf("expected refreshed token, got %s", tok)
		}
		if accounts.Count("refresh_token") != 1 {
			t.Errorf("expected one refresh, got %d", accounts.Count("refresh_token"))
		}
	})

	t.Run("refresh keeps refresh token when none is returned", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("test")
		_ = credentials.SaveRecord(store, credentials.Record{AccessToken: "old", RefreshToken: "r1", Expiry: epoch.Add(-time.Hour)})

		if _, err := newSource(t, store, accounts, tu.NewFakeClock(epoch)).AccessToken(context.Background()); err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}

		rec, _ := credentials.Load(store)
		if rec.RefreshToken != "r1" {
			t.Errorf("expected refresh token r1, got %s", rec.RefreshToken)
		}
		if rec.AccessToken != "fresh-access" {
			t.Errorf("expected new access token, got %s", rec.AccessToken)
		}
		if want := epoch.Add(3600 * time.Second); !rec.Expiry.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, rec.Expiry)
		}

		form := accounts.Requests()[0]
		if form.Get("refresh_token") != "r1" || form.Get("client_id") != "client-123" {
			t.Errorf("unexpected refresh form %v", form)
		}
		if form.Get("client_secret") != "" {
			t.Error("public client must not send a secret")
		}
	})

	t.Run("rotated refresh token is stored", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		accounts.Reply(func(url.Values) tu.TokenResponse {
			return tu.TokenResponse{Status: http.StatusOK, Body: map[string]any{
				"access_token": "a2", "token_type": "Bearer", "expires_in": 3600, "refresh_token": "r2",
			}}
		})
		store := credentials.NewMemoryScope("test")
		_ = store.Write(credentials.RefreshToken, "r1")

		if _, err := newSource(t, store, accounts, tu.NewFakeClock(epoch)).AccessToken(context.Background()); err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if v, _, _ := store.Read(credentials.RefreshToken); v != "r2" {
			t.Errorf("expected rotated refresh token r2, got %s", v)
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("test")

		_, err := newSource(t, store, accounts, tu.NewFakeClock(epoch)).AccessToken(context.Background())
		if !errors.Is(err, shared.ErrMissingAccessToken) || !errors.Is(err, shared.ErrMissingRefreshToken) {
			t.Errorf("expected missing token errors, got %v", err)
		}
		if len(accounts.Requests()) != 0 {
			t.Error("no request should be made without a refresh token")
		}
	})

	t.Run("refresh failure maps status", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		accounts.Reply(func(url.Values) tu.TokenResponse {
			return tu.TokenResponse{Status: http.StatusBadRequest, Body: map[string]any{"error": "invalid_grant"}}
		})
		store := credentials.NewMemoryScope("test")
		_ = store.Write(credentials.RefreshToken, "revoked")

		_, err := newSource(t, store, accounts, tu.NewFakeClock(epoch)).AccessToken(context.Background())
		var status *shared.HTTPStatusError
		if !errors.As(err, &status) || status.Code != http.StatusBadRequest {
			t.Errorf("expected HTTPStatusError 400, got %v", err)
		}
	})

	t.Run("malformed token response is a decoding error", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		accounts.Reply(func(url.Values) tu.TokenResponse {
			return tu.TokenResponse{Status: http.StatusOK, Body: `{"access_token": 12`}
		})
		store := credentials.NewMemoryScope("test")
		_ = store.Write(credentials.RefreshToken, "r1")

		_, err := newSource(t, store, accounts, tu.NewFakeClock(epoch)).AccessToken(context.Background())
		if !errors.Is(err, shared.ErrDecodingFailed) {
			t.Errorf("expected ErrDecodingFailed, got %v", err)
		}
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		release := accounts.Hold()
		store := credentials.NewMemoryScope("test")
		_ = credentials.SaveRecord(store, credentials.Record{AccessToken: "old", RefreshToken: "r1", Expiry: epoch.Add(-time.Minute)})

		src := NewTokenSource(TokenSourceOpts{
			Config: testConfig(accounts),
			Store:  store,
			Clock:  tu.NewFakeClock(epoch),
			Locker: credentials.NewLocker(t.TempDir()+"/refresh.lock", time.Second),
		})

		const callers = 8
		var wg sync.WaitGroup
		results := make([]string, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = src.AccessToken(context.Background())
			}(i)
		}

		time.Sleep(50 * time.Millisecond)
		release()
		wg.Wait()

		for i := range callers {
			if errs[i] != nil || results[i] != "fresh-access" {
				t.Errorf("caller %d: got %q, %v", i, results[i], errs[i])
			}
		}
		if n := accounts.Count("refresh_token"); n != 1 {
			t.Errorf("expected exactly one refresh, got %d", n)
		}
	})

	t.Run("cancelled first caller does not fail the others", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		release := accounts.Hold()
		defer release()
		store := credentials.NewMemoryScope("test")
		_ = credentials.SaveRecord(store, credentials.Record{AccessToken: "old", RefreshToken: "r1", Expiry: epoch.Add(-time.Minute)})
		src := newSource(t, store, accounts, tu.NewFakeClock(epoch))

		leaderCtx, cancel := context.WithCancel(context.Background())
		leaderErr := make(chan error, 1)
		go func() {
			_, err := src.AccessToken(leaderCtx)
			leaderErr <- err
		}()
		time.Sleep(20 * time.Millisecond)

		type result struct {
			tok string
			err error
		}
		waiter := make(chan result, 1)
		go func() {
			tok, err := src.AccessToken(context.Background())
			waiter <- result{tok, err}
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		if err := <-leaderErr; !errors.Is(err, context.Canceled) {
			t.Errorf("leader should see its own cancellation, got %v", err)
		}

		release()
		got := <-waiter
		if got.err != nil || got.tok != "fresh-access" {
			t.Errorf("waiter should get the refreshed token, got %q, %v", got.tok, got.err)
		}
		if n := accounts.Count("refresh_token"); n != 1 {
			t.Errorf("expected exactly one refresh, got %d", n)
		}
	})

	t.Run("invalidate keeps refresh token", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("test")
		_ = credentials.SaveRecord(store, credentials.Record{AccessToken: "a", RefreshToken: "r", Expiry: epoch.Add(time.Hour)})

		src := newSource(t, store, accounts, tu.NewFakeClock(epoch))
		if err := src.Invalidate(); err != nil {
			t.Fatalf("Invalidate failed: %v", err)
		}
		if _, ok, _ := store.Read(credentials.AccessToken); ok {
			t.Error("access token should be removed")
		}
		if signedIn, _ := src.SignedIn(); !signedIn {
			t.Error("refresh token should keep the session signed in")
		}

		tok, err := src.AccessToken(context.Background())
		if err != nil || tok != "fresh-access" {
			t.Errorf("expected refresh after invalidate, got %q, %v", tok, err)
		}
	})
}

// callbackFor simulates the provider redirecting back with the given query values. The state
// from the authorization URL is echoed unless the values override it.
func callbackFor(values url.Values) PresenterFunc {
	return func(ctx context.Context, authURL string) (*url.URL, error) {
		u, err := url.Parse(authURL)
		if err != nil {
			return nil, err
		}
		q := url.Values{"state": {u.Query().Get("state")}}
		for k, v := range values {
			q[k] = v
		}
		return &url.URL{Scheme: "http", Host: "127.0.0.1:3000", Path: "/callback", RawQuery: q.Encode()}, nil
	}
}

func TestSessionLogin(t *testing.T) {
	t.Run("exchanges code with verifier and stores tokens", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		accounts.Reply(func(url.Values) tu.TokenResponse {
			return tu.TokenResponse{Status: http.StatusOK, Body: map[string]any{
				"access_token": "a1", "token_type": "Bearer", "expires_in": 3600, "refresh_token": "r1",
			}}
		})
		store := credentials.NewMemoryScope("test")

		var authURL *url.URL
		presenter := PresenterFunc(func(ctx context.Context, raw string) (*url.URL, error) {
			authURL, _ = url.Parse(raw)
			return callbackFor(url.Values{"code": {"the-code"}})(ctx, raw)
		})

		session := NewSession(SessionOpts{Config: testConfig(accounts), Store: store, Presenter: presenter, Clock: tu.NewFakeClock(epoch)})
		if session.State() != SignedOut {
			t.Fatalf("expected signed out, got %s", session.State())
		}

		if err := session.Login(context.Background()); err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		q := authURL.Query()
		for key, want := range map[string]string{
			"response_type":         "code",
			"client_id":             "client-123",
			"redirect_uri":          "http://127.0.0.1:3000/callback",
			"scope":                 "user-read-currently-playing playlist-modify-private",
			"code_challenge_method": "S256",
		} {
			if got := q.Get(key); got != want {
				t.Errorf("auth url %s: expected %q, got %q", key, want, got)
			}
		}

		forms := accounts.Requests()
		if len(forms) != 1 {
			t.Fatalf("expected one token request, got %d", len(forms))
		}
		form := forms[0]
		if form.Get("grant_type") != "authorization_code" || form.Get("code") != "the-code" {
			t.Errorf("unexpected exchange form %v", form)
		}
		if Challenge(form.Get("code_verifier")) != q.Get("code_challenge") {
			t.Error("verifier does not match the challenge sent to the authorize endpoint")
		}

		rec, _ := credentials.Load(store)
		if rec.AccessToken != "a1" || rec.RefreshToken != "r1" || !rec.Expiry.Equal(epoch.Add(time.Hour)) {
			t.Errorf("unexpected stored record %+v", rec)
		}
		if session.State() != SignedIn {
			t.Errorf("expected signed in, got %s", session.State())
		}
	})

	t.Run("missing code makes no exchange", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("test")
		session := NewSession(SessionOpts{Config: testConfig(accounts), Store: store, Presenter: callbackFor(nil)})

		err := session.Login(context.Background())
		if !errors.Is(err, shared.ErrMissingAuthCode) {
			t.Errorf("expected ErrMissingAuthCode, got %v", err)
		}
		if len(accounts.Requests()) != 0 {
			t.Error("no token request should be made")
		}
		if session.State() != SignedOut {
			t.Errorf("expected signed out after failure, got %s", session.State())
		}
	})

	t.Run("callback errors", func(t *testing.T) {
		tests := []struct {
			name      string
			presenter Presenter
			want      error
		}{
			{"denied", callbackFor(url.Values{"error": {"access_denied"}}), shared.ErrSessionFailed},
			{"state mismatch", callbackFor(url.Values{"code": {"c"}, "state": {"forged"}}), shared.ErrSessionFailed},
			{"nil callback", PresenterFunc(func(context.Context, string) (*url.URL, error) { return nil, nil }), shared.ErrMissingCallbackURL},
			{"presenter failure", PresenterFunc(func(context.Context, string) (*url.URL, error) {
				return nil, fmt.Errorf("%w: %w", shared.ErrSessionFailed, context.Canceled)
			}), context.Canceled},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				accounts := tu.NewAccountsServer(t)
				session := NewSession(SessionOpts{Config: testConfig(accounts), Store: credentials.NewMemoryScope("t"), Presenter: tt.presenter})

				if err := session.Login(context.Background()); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if len(accounts.Requests()) != 0 {
					t.Error("no token request should be made")
				}
			})
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		for _, mutate := range []func(*Config){
			func(c *Config) { c.ClientID = "" },
			func(c *Config) { c.RedirectURI = "no-scheme" },
			func(c *Config) { c.TokenURL = "" },
		} {
			cfg := testConfig(accounts)
			mutate(&cfg)
			session := NewSession(SessionOpts{Config: cfg, Store: credentials.NewMemoryScope("t"), Presenter: callbackFor(nil)})
			if err := session.Login(context.Background()); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		accounts.Reply(func(url.Values) tu.TokenResponse {
			return tu.TokenResponse{Status: http.StatusInternalServerError, Body: map[string]any{"error": "server_error"}}
		})
		store := credentials.NewMemoryScope("t")
		session := NewSession(SessionOpts{Config: testConfig(accounts), Store: store, Presenter: callbackFor(url.Values{"code": {"c"}})})

		var status *shared.HTTPStatusError
		if err := session.Login(context.Background()); !errors.As(err, &status) || status.Code != 500 {
			t.Errorf("expected HTTPStatusError 500, got %v", err)
		}
		if rec, _ := credentials.Load(store); !rec.Empty() {
			t.Error("nothing should be stored after a failed exchange")
		}
	})

	t.Run("login while signed in is rejected", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		store := credentials.NewMemoryScope("t")
		_ = store.Write(credentials.RefreshToken, "r1")
		session := NewSession(SessionOpts{Config: testConfig(accounts), Store: store, Presenter: callbackFor(url.Values{"code": {"c"}})})

		if err := session.Login(context.Background()); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}

		if err := session.Logout(); err != nil {
			t.Fatalf("Logout failed: %v", err)
		}
		if session.State() != SignedOut {
			t.Errorf("expected signed out, got %s", session.State())
		}
		if err := session.Login(context.Background()); err != nil {
			t.Errorf("login after logout failed: %v", err)
		}
	})

	t.Run("state is authenticating while presenting", func(t *testing.T) {
		accounts := tu.NewAccountsServer(t)
		var session *Session
		var seen State
		session = NewSession(SessionOpts{
			Config: testConfig(accounts),
			Store:  credentials.NewMemoryScope("t"),
			Presenter: PresenterFunc(func(ctx context.Context, raw string) (*url.URL, error) {
				seen = session.State()
				return nil, shared.ErrSessionFailed
			}),
		})

		_ = session.Login(context.Background())
		if seen != Authenticating {
			t.Errorf("expected authenticating, got %s", seen)
		}
	})
}
