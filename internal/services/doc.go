// Package services implements the HTTP clients the bot talks to.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] refreshes expired tokens using the stored refresh token; a callback registered with
// [SpotifyService.SetTokenRefreshCallback] sees every new token so the CLI can persist it.
// Requests are paced by a [rate.Limiter] shared by all calls on one service.
//
// The catalog operations the bot needs are:
//   - [SpotifyService.Track] : resolve a track id to its canonical URI
//   - [SpotifyService.PlaylistTracks] : one page of playlist items
//   - [SpotifyService.AddTracksToPlaylist] : insert URIs at a position
//   - [SpotifyService.ReorderPlaylistTracks] : move one item to a new position
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends [Service] for OAuth providers.
// [SpotifyService] implements this for the `spotify auth` command and its callback server.
//
// # Webhook Client
//
// [WebhookService] posts JSON payloads to the chat platform's incoming webhook.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrAPIRequest] : non-2xx response, wrapped with status and message
//   - [shared.ErrTrackNotFound] : unknown track id
//   - [shared.ErrServiceUnavailable] : 429 and 5xx responses
package services
