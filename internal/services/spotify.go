// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the root of the Spotify Web API.
	DefaultBaseURL = "https://api.spotify.com/v1"

	playlistPageSize = 50
	trackPageSize    = 100

	UnknownArtist  = "Unknown Artist"
	UnknownTrack   = "Unknown Track"
	UnknownTrackID = "unknown"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height *int   `json:"height,omitempty"`
	Width  *int   `json:"width,omitempty"`
}

// SpotifyTrack represents a track or an episode in the player.
//
// Episodes have no album; their artwork is carried in Images.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   *SpotifyAlbum   `json:"album"`
	Images  []SpotifyImage  `json:"images"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Owner         Owner               `json:"owner"`
	Collaborative *bool               `json:"collaborative"`
	Tracks        simplePlaylistTrack `json:"tracks"`
	Images        []SpotifyImage      `json:"images"`
}

func (sp SpotifySimplePlaylist) playlist() Playlist {
	return Playlist{
		ID:            sp.ID,
		Name:          sp.Name,
		Description:   sp.Description,
		Images:        sp.Images,
		OwnerID:       sp.Owner.ID,
		Collaborative: sp.Collaborative,
		TrackCount:    sp.Tracks.Total,
	}
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Next  *string                 `json:"next"`
}

// SpotifyCurrentlyPlaying is the body of the currently-playing endpoint.
type SpotifyCurrentlyPlaying struct {
	IsPlaying bool          `json:"is_playing"`
	Item      *SpotifyTrack `json:"item"`
}

// playlistTrackIDs matches the fields=items(track(id)),next projection.
type playlistTrackIDs struct {
	Items []struct {
		Track *struct {
			ID string `json:"id"`
		} `json:"track"`
	} `json:"items"`
	Next *string `json:"next"`
}

// SpotifyClientOpts configures a [SpotifyClient].
type SpotifyClientOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenProvider
	Limiter    *rate.Limiter // optional request pacing
	Logger     *log.Logger
}

// SpotifyClient implements [Client] against the Web API.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyClient creates a client. Tokens is required.
func NewSpotifyClient(opts SpotifyClientOpts) *SpotifyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &SpotifyClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
}

// NewLimiter paces requests at rps with a small burst; a non-positive rps disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

func (c *SpotifyClient) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *SpotifyClient) get(ctx context.Context, url string, v any) error {
	resp, err := c.dispatch(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

// FetchIdentity reads the current user's profile.
func (c *SpotifyClient) FetchIdentity(ctx context.Context) (*Identity, error) {
	var user SpotifyUser
	if err := c.get(ctx, c.endpoint("/me", nil), &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, &shared.DecodingError{Err: errors.New("profile has no id")}
	}

	id := &Identity{ID: user.ID, DisplayName: user.DisplayName}
	if len(user.Images) > 0 {
		id.AvatarURL = user.Images[0].URL
	}
	return id, nil
}

// FetchPlaylists follows the cursor until it is exhausted and returns every page's items.
//
// Pages are requested one after another since each cursor comes from the previous response.
func (c *SpotifyClient) FetchPlaylists(ctx context.Context) ([]Playlist, error) {
	next := c.endpoint("/me/playlists", url.Values{"limit": {strconv.Itoa(playlistPageSize)}})
	seen := map[string]bool{}

	var all []Playlist
	for next != "" && !seen[next] {
		seen[next] = true

		var page SpotifyPaginatedPlaylists
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, sp := range page.Items {
			all = append(all, sp.playlist())
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	c.logger.Debug("fetched playlists", "count", len(all), "pages", len(seen))
	return all, nil
}

// FetchEditablePlaylists returns the playlists userID owns or collaborates on.
func (c *SpotifyClient) FetchEditablePlaylists(ctx context.Context, userID string) ([]Playlist, error) {
	all, err := c.FetchPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	return EditablePlaylists(all, userID), nil
}

// EditablePlaylists keeps playlists owned by userID or marked collaborative.
func EditablePlaylists(list []Playlist, userID string) []Playlist {
	out := make([]Playlist, 0, len(list))
	for _, p := range list {
		if p.Editable(userID) {
			out = append(out, p)
		}
	}
	return out
}

// FetchPlaylist reads a single playlist's metadata.
func (c *SpotifyClient) FetchPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is empty", shared.ErrInvalidArgument)
	}

	var sp SpotifySimplePlaylist
	q := url.Values{"fields": {"id,name,description,owner(id,display_name),collaborative,images,tracks(total)"}}
	if err := c.get(ctx, c.endpoint("/playlists/"+url.PathEscape(playlistID), q), &sp); err != nil {
		return nil, err
	}
	p := sp.playlist()
	return &p, nil
}

// CurrentTrack reads the item playing right now.
//
// Nothing playing (204, an empty body, no item, or an item without a URI) is [shared.ErrNoCurrentTrack].
func (c *SpotifyClient) CurrentTrack(ctx context.Context) (*CurrentTrack, error) {
	resp, err := c.dispatch(ctx, http.MethodGet, c.endpoint("/me/player/currently-playing", nil), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || (resp.OK() && len(strings.TrimSpace(string(resp.Body))) == 0) {
		return nil, shared.ErrNoCurrentTrack
	}

	var playing SpotifyCurrentlyPlaying
	if err := decode(resp, &playing); err != nil {
		return nil, err
	}

	item := playing.Item
	if item == nil || item.URI == "" {
		return nil, shared.ErrNoCurrentTrack
	}

	track := &CurrentTrack{ID: item.ID, URI: item.URI, Name: item.Name, ArtistName: UnknownArtist}
	if len(item.Artists) > 0 && item.Artists[0].Name != "" {
		track.ArtistName = item.Artists[0].Name
	}
	switch {
	case item.Album != nil && len(item.Album.Images) > 0:
		track.ArtworkURL = item.Album.Images[0].URL
	case len(item.Images) > 0:
		track.ArtworkURL = item.Images[0].URL
	}
	return track, nil
}

// PlaylistContainsTrack pages through the playlist until trackID is found or the cursor ends.
//
// Items whose track is null (removed or unavailable) are skipped.
func (c *SpotifyClient) PlaylistContainsTrack(ctx context.Context, playlistID, trackID string) (bool, error) {
	if playlistID == "" {
		return false, fmt.Errorf("%w: playlist id is empty", shared.ErrInvalidArgument)
	}
	if trackID == "" {
		return false, nil
	}

	next := c.endpoint("/playlists/"+url.PathEscape(playlistID)+"/tracks", url.Values{
		"limit":  {strconv.Itoa(trackPageSize)},
		"fields": {"items(track(id)),next"},
	})
	seen := map[string]bool{}

	for next != "" && !seen[next] {
		seen[next] = true

		var page playlistTrackIDs
		if err := c.get(ctx, next, &page); err != nil {
			return false, err
		}
		for _, item := range page.Items {
			if item.Track != nil && item.Track.ID == trackID {
				return true, nil
			}
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}
	return false, nil
}

// AddCurrentTrack appends the playing track to the playlist unless it is already there.
//
// A duplicate returns [*shared.DuplicateTrackError] and issues no write.
func (c *SpotifyClient) AddCurrentTrack(ctx context.Context, playlistID string) (*AddTrackResult, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is empty", shared.ErrInvalidArgument)
	}

	track, err := c.CurrentTrack(ctx)
	if err != nil {
		return nil, err
	}

	if track.ID != "" {
		exists, err := c.PlaylistContainsTrack(ctx, playlistID, track.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			c.logger.Info("track already in playlist", "track", track.ID, "playlist", playlistID)
			name := track.Name
			if name == "" {
				name = UnknownTrack
			}
			return nil, &shared.DuplicateTrackError{Name: name, Artist: track.ArtistName, ArtworkURL: track.ArtworkURL}
		}
	}

	body := map[string][]string{"uris": {track.URI}}
	resp, err := c.dispatch(ctx, http.MethodPost, c.endpoint("/playlists/"+url.PathEscape(playlistID)+"/tracks", nil), body)
	if err != nil {
		return nil, err
	}
	if err := decode(resp, nil); err != nil {
		return nil, err
	}

	result := &AddTrackResult{
		TrackID:    track.ID,
		TrackName:  track.Name,
		ArtistName: track.ArtistName,
		ArtworkURL: track.ArtworkURL,
	}
	if result.TrackID == "" {
		result.TrackID = UnknownTrackID
	}
	if result.TrackName == "" {
		result.TrackName = UnknownTrack
	}

	c.logger.Info("track added", "track", result.TrackID, "playlist", playlistID)
	return result, nil
}
