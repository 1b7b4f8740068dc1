// package services implements the authenticated Spotify Web API client
package services

import (
	"context"
)

// TokenProvider supplies bearer tokens to the request pipeline.
//
// Invalidate is called when the API rejects a token with 401 and must drop the access token only.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate() error
}

// Client is the set of operations the save runner and the CLI use.
type Client interface {
	FetchIdentity(ctx context.Context) (*Identity, error)
	FetchPlaylists(ctx context.Context) ([]Playlist, error)
	FetchEditablePlaylists(ctx context.Context, userID string) ([]Playlist, error)
	FetchPlaylist(ctx context.Context, playlistID string) (*Playlist, error)
	CurrentTrack(ctx context.Context) (*CurrentTrack, error)
	PlaylistContainsTrack(ctx context.Context, playlistID, trackID string) (bool, error)
	AddCurrentTrack(ctx context.Context, playlistID string) (*AddTrackResult, error)
}

// Identity is the signed-in Spotify account.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Playlist is a read-only view of a remote playlist.
type Playlist struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Images        []SpotifyImage `json:"images,omitempty"`
	OwnerID       string         `json:"owner_id"`
	Collaborative *bool          `json:"collaborative,omitempty"`
	TrackCount    int            `json:"track_count"`
}

// ImageURLs returns the URLs of the playlist images in API order.
func (p Playlist) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return urls
}

// Editable reports whether userID may add tracks to the playlist.
func (p Playlist) Editable(userID string) bool {
	return p.OwnerID == userID || (p.Collaborative != nil && *p.Collaborative)
}

// CurrentTrack is a snapshot of the item playing right now. ID and Name may be empty.
type CurrentTrack struct {
	ID         string `json:"id,omitempty"`
	URI        string `json:"uri"`
	Name       string `json:"name,omitempty"`
	ArtistName string `json:"artist_name"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// AddTrackResult describes a track appended to a playlist.
type AddTrackResult struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}
