// Package auth implements the PKCE login and token refresh for the Spotify account.
//
// # Login
//
// A [Session] drives the one-time authorization code flow. It generates a [PKCE] pair, builds
// the authorization URL, hands it to a [Presenter] that captures the redirect, exchanges the
// returned code for tokens and persists them in a [credentials.Store].
//
// # Refresh
//
// A [TokenSource] hands out access tokens. A cached token is reused while it has more than
// [RefreshSkew] left; otherwise one refresh exchange runs per process no matter how many callers
// are waiting, and a file lock narrows the window in which separate processes refresh at once.
//
// # States
//
// Sessions move SignedOut → Authenticating → SignedIn and fall back to SignedOut when a login
// fails or the user logs out. A 401 from the API signs the session out as well. See [Transition].
package auth
