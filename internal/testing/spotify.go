package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakePlaylist is a playlist served by [SpotifyServer].
type FakePlaylist struct {
	ID            string
	Name          string
	OwnerID       string
	Collaborative *bool
	Images        []string
}

// FakeTrack is the currently playing item served by [SpotifyServer].
type FakeTrack struct {
	ID          string
	URI         string
	Name        string
	Artists     []string
	AlbumImages []string
	Images      []string
}

// SpotifyServer fakes the Web API endpoints used by the client and records every request.
type SpotifyServer struct {
	*httptest.Server

	mu        sync.Mutex
	UserID    string
	Name      string
	Playlists []FakePlaylist
	// Tracks maps playlist ids to track ids; an empty id is served as a null track.
	Tracks   map[string][]string
	Current  *FakeTrack
	PageSize int
	// Status forces a status code for "METHOD /path" keys.
	Status map[string]int
	// Token, when set, is the only accepted bearer token.
	Token string

	requests []string
	added    map[string][]string
}

// NewSpotifyServer starts a fake API with user "user-1" and no playlists.
func NewSpotifyServer(t *testing.T) *SpotifyServer {
	t.Helper()

	s := &SpotifyServer{
		UserID:   "user-1",
		Name:     "Test User",
		Tracks:   map[string][]string{},
		Status:   map[string]int{},
		PageSize: 2,
		added:    map[string][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", s.handleMe)
	mux.HandleFunc("GET /me/playlists", s.handlePlaylists)
	mux.HandleFunc("GET /me/player/currently-playing", s.handleCurrent)
	mux.HandleFunc("GET /playlists/{id}", s.handlePlaylist)
	mux.HandleFunc("GET /playlists/{id}/tracks", s.handleTracks)
	mux.HandleFunc("POST /playlists/{id}/tracks", s.handleAdd)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Requests returns "METHOD /path" for every request received.
func (s *SpotifyServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many requests matched "METHOD /path".
func (s *SpotifyServer) Count(key string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == key {
			n++
		}
	}
	return n
}

// Added returns the URIs posted to a playlist.
func (s *SpotifyServer) Added(playlistID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.added[playlistID]...)
}

// Set runs fn with the server state locked.
func (s *SpotifyServer) Set(fn func(s *SpotifyServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *SpotifyServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, key)
		status, forced := s.Status[key]
		token := s.Token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "The access token expired"}})
			return
		}
		if forced {
			writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": http.StatusText(status)}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *SpotifyServer) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           s.UserID,
		"display_name": s.Name,
		"images":       []any{map[string]any{"url": "https://i.scdn.co/image/avatar", "height": 64, "width": 64}},
	})
}

func (s *SpotifyServer) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, limit := s.window(r, len(s.Playlists))
	items := make([]any, 0, limit)
	for _, p := range s.Playlists[offset : offset+limit] {
		item := map[string]any{
			"id":          p.ID,
			"name":        p.Name,
			"description": "",
			"owner":       map[string]any{"id": p.OwnerID, "display_name": p.OwnerID},
			"images":      images(p.Images),
			"tracks":      map[string]any{"total": len(s.Tracks[p.ID])},
		}
		if p.Collaborative != nil {
			item["collaborative"] = *p.Collaborative
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(s.Playlists),
		"next":  s.next(r, offset+limit, len(s.Playlists)),
	})
}

func (s *SpotifyServer) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	for _, p := range s.Playlists {
		if p.ID != id {
			continue
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     p.ID,
			"name":   p.Name,
			"owner":  map[string]any{"id": p.OwnerID},
			"images": images(p.Images),
			"tracks": map[string]any{"total": len(s.Tracks[p.ID])},
		})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found."}})
}

func (s *SpotifyServer) handleCurrent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Current == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	c := s.Current
	artists := make([]any, 0, len(c.Artists))
	for _, a := range c.Artists {
		artists = append(artists, map[string]any{"name": a})
	}

	item := map[string]any{
		"name":    c.Name,
		"artists": artists,
		"album":   map[string]any{"images": images(c.AlbumImages)},
	}
	if c.ID != "" {
		item["id"] = c.ID
	}
	if c.URI != "" {
		item["uri"] = c.URI
	}
	if c.Images != nil {
		item["images"] = images(c.Images)
	}

	writeJSON(w, http.StatusOK, map[string]any{"is_playing": true, "item": item})
}

func (s *SpotifyServer) handleTracks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.Tracks[r.PathValue("id")]
	offset, limit := s.window(r, len(ids))

	items := make([]any, 0, limit)
	for _, id := range ids[offset : offset+limit] {
		if id == "" {
			items = append(items, map[string]any{"track": nil})
			continue
		}
		items = append(items, map[string]any{"track": map[string]any{"id": id}})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"next":  s.next(r, offset+limit, len(ids)),
	})
}

func (s *SpotifyServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.PathValue("id")
	s.added[id] = append(s.added[id], body.URIs...)
	for _, uri := range body.URIs {
		s.Tracks[id] = append(s.Tracks[id], uri[strings.LastIndex(uri, ":")+1:])
	}

	writeJSON(w, http.StatusCreated, map[string]any{"snapshot_id": "snap-" + strconv.Itoa(len(s.added[id]))})
}

// window reads offset and limit from the query, capping the limit at PageSize.
func (s *SpotifyServer) window(r *http.Request, total int) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || (s.PageSize > 0 && limit > s.PageSize) {
		limit = s.PageSize
	}
	if limit <= 0 {
		limit = total
	}
	offset = min(max(offset, 0), total)
	limit = min(limit, total-offset)
	return offset, limit
}

func (s *SpotifyServer) next(r *http.Request, offset, total int) any {
	if offset >= total {
		return nil
	}
	q := r.URL.Query()
	q.Set("offset", strconv.Itoa(offset))
	return fmt.Sprintf("%s%s?%s", s.URL, r.URL.Path, q.Encode())
}

func images(urls []string) []any {
	out := make([]any, 0, len(urls))
	for _, u := range urls {
		out = append(out, map[string]any{"url": u})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
