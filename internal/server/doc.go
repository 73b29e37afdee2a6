// Package server provides the HTTP side of the bot.
//
// # Router
//
// [NewRouter] builds a chi router with request ids, panic recovery and [RequestLogger]. Types implementing
// [Handler] carry their own route list and are mounted on every path they return.
//
// [NewBotRouter] adds the endpoints of a running bot:
//   - GET /healthz reports database reachability
//   - GET /metrics serves Prometheus metrics
//   - POST /chat/messages accepts inbound chat messages for the webhook transport
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the Spotify authorization code flow. It validates the state parameter,
// exchanges the code through an [Exchanger] and publishes the token on a channel. Only the first
// callback is processed, so a replayed redirect cannot overwrite the token.
//
// # Server
//
// [Server] wraps http.Server with context-driven graceful shutdown so it can run inside an errgroup next
// to the bot loop.
package server
