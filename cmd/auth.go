package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tracksaver/internal/auth"
	"github.com/desertthunder/tracksaver/internal/credentials"
	"github.com/desertthunder/tracksaver/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

// AuthLogin runs the PKCE authorization flow through a local callback server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	session, err := r.session(cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if session.State() == auth.SignedIn {
		if !cmd.Bool("force") {
			return fmt.Errorf("%w: already signed in; use --force or 'tracksaver auth logout'", shared.ErrInvalidTransition)
		}
		if err := session.Logout(); err != nil {
			return err
		}
	}

	timeout := r.config.Login.Timeout()
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)
	if err := session.Login(ctx); err != nil {
		return err
	}

	r.writePlain("%s\n", r.palette.OK("✓ Authorization successful"))
	if identity, err := r.spotify().FetchIdentity(ctx); err == nil {
		r.writePlain("Signed in as %s (%s)\n", identity.DisplayName, identity.ID)
	} else {
		r.logger.Warn("signed in but the account could not be read", "error", err)
	}
	r.writePlain("\nNext: tracksaver playlists, then tracksaver select <playlist-id>\n")
	return nil
}

// AuthLogout deletes every stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	session, err := r.session(true)
	if err != nil {
		return err
	}
	if err := session.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

type authStatus struct {
	State      string     `json:"state"`
	Storage    string     `json:"storage"`
	Keyring    bool       `json:"keyring"`
	Expiry     *time.Time `json:"access_token_expiry,omitempty"`
	HasRefresh bool       `json:"has_refresh_token"`
	User       string     `json:"user,omitempty"`
}

// AuthStatus reports the session state without refreshing tokens.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	store := r.credentialStore()
	rec, err := credentials.Load(store)
	if err != nil {
		return err
	}

	status := authStatus{State: auth.SignedOut.String(), HasRefresh: rec.RefreshToken != ""}
	if !rec.Empty() {
		status.State = auth.SignedIn.String()
	}
	if !rec.Expiry.IsZero() {
		status.Expiry = &rec.Expiry
	}
	if d, ok := store.(*credentials.DualStore); ok {
		status.Storage = d.ActiveScope()
		status.Keyring = d.SharedAvailable()
	}
	if !rec.Empty() {
		if identity, err := r.spotify().FetchIdentity(ctx); err == nil {
			status.User = identity.ID
		} else {
			r.logger.Debug("identity unavailable", "kind", shared.Kind(err))
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Spotify sign-in")
	if status.State == auth.SignedIn.String() {
		r.writePlain("State:   %s\n", r.palette.OK(status.State))
	} else {
		r.writePlain("State:   %s\n", r.palette.Warn(status.State))
	}
	if status.User != "" {
		r.writePlain("User:    %s\n", status.User)
	}
	if status.Storage != "" {
		r.writePlain("Storage: %s\n", status.Storage)
	}
	if status.Expiry != nil {
		r.writePlain("Expires: %s\n", status.Expiry.Local().Format(time.RFC1123))
	}
	if status.State == auth.SignedOut.String() {
		r.writePlain("%s\n", r.palette.Help("Run 'tracksaver auth login' to sign in."))
	}
	return nil
}

// AuthMigrate copies private-file credentials into the keyring once the keyring is usable.
func (r *Runner) AuthMigrate(ctx context.Context, cmd *cli.Command) error {
	d, ok := r.credentialStore().(*credentials.DualStore)
	if !ok || !d.SharedAvailable() {
		return fmt.Errorf("%w: keyring is not available", shared.ErrScopeUnavailable)
	}

	copied, err := d.Migrate()
	if err != nil {
		return err
	}
	if !copied {
		return r.writePlain("Nothing to migrate\n")
	}
	return r.writePlain("✓ Credentials copied to %s\n", d.ActiveScope())
}
