package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/shared"
)

// CallbackResult is the redirect captured by a [CallbackHandler].
type CallbackResult struct {
	URL *url.URL
}

// CallbackHandler captures the first request to the redirect path.
type CallbackHandler struct {
	path        string
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a handler for path, "/callback" when empty.
func NewCallbackHandler(path string) *CallbackHandler {
	if path == "" {
		path = "/callback"
	}
	return &CallbackHandler{path: path, resultChan: make(chan CallbackResult, 1)}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"GET " + h.path}
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type page struct {
	Title, Message string
	Color          template.CSS
}

// ServeHTTP records the request URL and renders a page telling the user to return to the terminal.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	captured := *r.URL
	captured.Scheme = "http"
	captured.Host = r.Host
	h.Send(CallbackResult{URL: &captured})

	p := page{Title: "✓ Authorization Received", Message: "You can close this window and return to the terminal.", Color: "#1DB954"}
	status := http.StatusOK
	if q := r.URL.Query(); q.Get("error") != "" || q.Get("code") == "" {
		p = page{Title: "Authorization Failed", Message: "Return to the terminal for details.", Color: "#E22134"}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, p)
}

// Send publishes the result (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result receives exactly one result and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

// LoopbackOpts configures a [LoopbackPresenter].
type LoopbackOpts struct {
	RedirectURI string
	OpenBrowser bool
	Out         io.Writer          // receives instructions and the URL when no browser is opened
	Open        func(string) error // defaults to [shared.OpenBrowser]
	Logger      *log.Logger
}

// LoopbackPresenter serves the redirect URI locally for the duration of one login.
type LoopbackPresenter struct {
	redirect *url.URL
	opts     LoopbackOpts
}

// NewLoopbackPresenter validates that the redirect URI is an http address with a port.
func NewLoopbackPresenter(opts LoopbackOpts) (*LoopbackPresenter, error) {
	u, err := url.Parse(opts.RedirectURI)
	if err != nil || u.Scheme != "http" || u.Port() == "" {
		return nil, fmt.Errorf("%w: redirect uri %q must be http://host:port/path", shared.ErrInvalidConfig, opts.RedirectURI)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &LoopbackPresenter{redirect: u, opts: opts}, nil
}

// Present listens on the redirect address, sends the user to authURL and returns the
// redirect it receives.
func (p *LoopbackPresenter) Present(ctx context.Context, authURL string) (*url.URL, error) {
	ln, err := net.Listen("tcp", p.redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot listen on %s: %v", shared.ErrSessionFailed, p.redirect.Host, err)
	}

	handler := NewCallbackHandler(p.redirect.Path)
	router := NewBasicRouter()
	router.Use(RequestLogger(p.opts.Logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	served := make(chan struct{})
	go func() {
		defer close(served)
		p.opts.Logger.Info("waiting for callback", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	// The port must be free once Present returns, even if Serve never started.
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			p.opts.Logger.Warn("error shutting down callback server", "error", err)
		}
		ln.Close()
		<-served
	}()

	p.show(authURL)

	select {
	case result := <-handler.Result():
		if result.URL == nil {
			return nil, shared.ErrMissingCallbackURL
		}
		return result.URL, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("%w: callback server: %v", shared.ErrSessionFailed, err)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", shared.ErrSessionFailed, ctx.Err())
	}
}

func (p *LoopbackPresenter) show(authURL string) {
	if p.opts.OpenBrowser {
		fmt.Fprintln(p.opts.Out, "→ Opening browser for Spotify authorization...")
		err := p.opts.Open(authURL)
		if err == nil {
			return
		}
		p.opts.Logger.Warn("failed to open browser automatically", "error", err)
		fmt.Fprintln(p.opts.Out, "⚠ Could not open browser automatically.")
	}
	fmt.Fprintf(p.opts.Out, "Please open this URL in your browser:\n%s\n\n", authURL)
}
