// Package api provides the JSON/SSE HTTP server for the assistant.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health: returns {"status":"ok"}
//   - GET /ready: pings the database pool
//
// Chat:
//   - POST /api/v1/chat/stream: run one turn, streamed as SSE
//   - GET  /api/v1/chat/history/{chatId}: replay the transcript
//   - GET  /api/v1/chat/images/{chatId}: all images suggested so far
//   - POST /api/v1/chat/images/resolve: resolve image ids to full refs
//
// The stream endpoint validates the request before switching the
// response to text/event-stream, so malformed requests get plain HTTP
// status codes and everything after the first event is delivered as
// events, errors included.
package api
