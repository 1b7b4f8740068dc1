package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// TokenResponse is a canned reply of [AccountsServer].
type TokenResponse struct {
	Status int
	Body   any
}

// AccountsServer fakes the token endpoint of the accounts service.
type AccountsServer struct {
	*httptest.Server

	mu    sync.Mutex
	forms []url.Values
	reply func(form url.Values) TokenResponse
	gate  chan struct{}
}

// NewAccountsServer starts a fake that issues a 3600 second access token for every grant.
func NewAccountsServer(t *testing.T) *AccountsServer {
	t.Helper()

	a := &AccountsServer{}
	a.reply = func(url.Values) TokenResponse {
		return TokenResponse{Status: http.StatusOK, Body: map[string]any{
			"access_token": "fresh-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", a.handleToken)
	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Close)
	return a
}

// TokenURL is the address of the fake token endpoint.
func (a *AccountsServer) TokenURL() string { return a.URL + "/api/token" }

// AuthURL is the address of the (unserved) authorize endpoint.
func (a *AccountsServer) AuthURL() string { return a.URL + "/authorize" }

// Reply replaces the response function.
func (a *AccountsServer) Reply(fn func(form url.Values) TokenResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reply = fn
}

// Hold blocks token requests until the returned function is called.
func (a *AccountsServer) Hold() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gate = gate
	a.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Requests returns the forms received so far.
func (a *AccountsServer) Requests() []url.Values {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]url.Values(nil), a.forms...)
}

// Count returns how many requests used the grant type.
func (a *AccountsServer) Count(grant string) int {
	n := 0
	for _, f := range a.Requests() {
		if f.Get("grant_type") == grant {
			n++
		}
	}
	return n
}

func (a *AccountsServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	a.forms = append(a.forms, r.PostForm)
	reply, gate := a.reply, a.gate
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}

	resp := reply(r.PostForm)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	switch body := resp.Body.(type) {
	case string:
		_, _ = w.Write([]byte(body))
	case nil:
	default:
		_ = json.NewEncoder(w).Encode(body)
	}
}
