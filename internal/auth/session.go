package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/credentials"
	"github.com/desertthunder/tracksaver/internal/shared"
	"golang.org/x/oauth2"
)

// Config is the public client registration used for the PKCE flow.
type Config struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	AuthURL     string
	TokenURL    string
}

// ConfigFrom builds a [Config] from the [spotify] section of the config file.
func ConfigFrom(c shared.SpotifyConfig) Config {
	return Config{
		ClientID:    c.ClientID,
		RedirectURI: c.RedirectURI,
		Scopes:      c.Scopes,
		AuthURL:     c.AuthURL(),
		TokenURL:    c.TokenURL(),
	}
}

// Validate reports a missing client id or a redirect URI without a scheme.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id is empty", shared.ErrInvalidConfig)
	}
	u, err := url.Parse(c.RedirectURI)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: redirect uri %q has no scheme", shared.ErrInvalidConfig, c.RedirectURI)
	}
	if c.AuthURL == "" || c.TokenURL == "" {
		return fmt.Errorf("%w: authorization endpoints are not set", shared.ErrInvalidConfig)
	}
	return nil
}

// OAuth2 returns the equivalent [oauth2.Config]. The client has no secret, so credentials
// travel in the form body.
func (c Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURI,
		Scopes:      c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Presenter shows the authorization URL to the user and returns the URL the provider
// redirected back to.
type Presenter interface {
	Present(ctx context.Context, authURL string) (*url.URL, error)
}

// PresenterFunc adapts a function to [Presenter].
type PresenterFunc func(ctx context.Context, authURL string) (*url.URL, error)

func (f PresenterFunc) Present(ctx context.Context, authURL string) (*url.URL, error) {
	return f(ctx, authURL)
}

// SessionOpts configures a [Session].
type SessionOpts struct {
	Config     Config
	Store      credentials.Store
	Presenter  Presenter
	Clock      shared.Clock
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Session runs the interactive login against one credential store.
type Session struct {
	config    Config
	store     credentials.Store
	presenter Presenter
	clock     shared.Clock
	client    *http.Client
	logger    *log.Logger

	mu             sync.Mutex
	authenticating bool
}

// NewSession creates a [Session].
func NewSession(opts SessionOpts) *Session {
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Session{
		config:    opts.Config,
		store:     opts.Store,
		presenter: opts.Presenter,
		clock:     opts.Clock,
		client:    opts.HTTPClient,
		logger:    opts.Logger,
	}
}

// State derives the current state from the store.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticating {
		return Authenticating
	}
	return s.storedState()
}

func (s *Session) storedState() State {
	rec, err := credentials.Load(s.store)
	if err != nil || rec.Empty() {
		return SignedOut
	}
	return SignedIn
}

// Login runs the authorization code flow once and persists the issued tokens.
//
// Logging in while signed in is rejected; call [Session.Logout] first.
func (s *Session) Login(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if err := s.config.Validate(); err != nil {
		return err
	}

	pkce, err := NewPKCE()
	if err != nil {
		return err
	}
	state := shared.GenerateID()

	oauth := s.config.OAuth2()
	authURL := oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	s.logger.Info("starting authorization", "redirect_uri", s.config.RedirectURI)

	callback, err := s.presenter.Present(ctx, authURL)
	if err != nil {
		return err
	}
	if callback == nil {
		return shared.ErrMissingCallbackURL
	}

	code, err := parseCallback(callback, state)
	if err != nil {
		return err
	}

	tok, err := oauth.Exchange(withHTTPClient(ctx, s.client), code, oauth2.VerifierOption(pkce.Verifier))
	if err != nil {
		return tokenError(err)
	}

	rec := recordFromToken(tok, s.clock.Now())
	if err := credentials.SaveRecord(s.store, rec); err != nil {
		return err
	}

	s.logger.Info("authorization complete", "expires", rec.Expiry, "refresh_token", rec.RefreshToken != "")
	return nil
}

// parseCallback extracts the code from the redirect, checking the error and state parameters.
func parseCallback(callback *url.URL, state string) (string, error) {
	q := callback.Query()

	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: provider returned %s", shared.ErrSessionFailed, e)
	}

	code := q.Get("code")
	if code == "" {
		return "", shared.ErrMissingAuthCode
	}

	if q.Get("state") != state {
		return "", fmt.Errorf("%w: state mismatch", shared.ErrSessionFailed)
	}
	return code, nil
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.storedState()
	if s.authenticating {
		from = Authenticating
	}
	if err := Transition(from, Authenticating); err != nil {
		return err
	}
	s.authenticating = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticating = false
}

// Logout removes every stored credential field.
func (s *Session) Logout() error {
	if err := s.store.DeleteAll(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	s.logger.Info("signed out")
	return nil
}
