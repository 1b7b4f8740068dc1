// Package server runs the short-lived HTTP server that receives the OAuth redirect.
//
// # Router
//
// [BasicRouter] implements [Router] on top of [http.ServeMux] method patterns. [Middleware]
// is applied in registration order, the first added running outermost.
//
// # Callback capture
//
// [CallbackHandler] accepts exactly one request on the redirect path and publishes its full URL
// through a channel that receives one value and is then closed. It does not interpret the query;
// the login session checks the state and extracts the code.
//
// [LoopbackPresenter] binds the redirect URI's host and port, registers a [CallbackHandler], opens
// the browser on the authorization URL and waits for the redirect. Cancelling the context (the
// user pressing Ctrl-C or the login timeout) ends the wait with a session failure and shuts the
// server down.
package server
