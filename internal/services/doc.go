// Package services implements the authenticated Spotify Web API client used to save the
// currently playing track.
//
// # Request pipeline
//
// Every call goes through one dispatch. It waits on the optional [rate.Limiter], asks the
// [TokenProvider] for a bearer token and executes the request. A 401 makes the provider drop its
// access token (the refresh token stays) and surfaces [shared.ErrUnauthorized]; the next call then
// refreshes instead of retrying a rejected token.
//
// Decoding is strict. Non-2xx statuses become [*shared.HTTPStatusError] and bodies that do not match
// the response types become [*shared.DecodingError]. Neither is replaced by a default value.
//
// # Composite operations
//
// [SpotifyClient.FetchPlaylists] follows the next cursor one page at a time until it is null.
//
// [SpotifyClient.AddCurrentTrack] reads the player, scans the target playlist for the track id
// and only posts the track URI when the scan finds nothing. A match returns
// [*shared.DuplicateTrackError] with the metadata of the playing track.
package services
