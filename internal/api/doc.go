// Package api provides the JSON REST API server for docket.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → Logging → CORS → RateLimit → User → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux, ensuring they remain fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — returns {"status":"ok"}
//   - GET /ready  — pings the database, returns {"status":"ok"} or 503
//
// Turns:
//   - POST /api/v1/turns — runs one turn, streamed as Server-Sent Events
//
// Modes:
//   - GET    /api/v1/modes            — list modes in position order
//   - POST   /api/v1/modes            — create a custom mode
//   - GET    /api/v1/modes/{id}       — get mode by ID
//   - PUT    /api/v1/modes/{id}       — update a custom mode
//   - DELETE /api/v1/modes/{id}       — delete a custom mode
//   - POST   /api/v1/modes/{id}/clone — clone any mode into a custom copy
//
// Conversations (scoped to the caller's user identity):
//   - GET    /api/v1/conversations             — list metadata, newest first
//   - GET    /api/v1/conversations/{id}        — get full conversation
//   - DELETE /api/v1/conversations/{id}        — delete conversation
//   - GET    /api/v1/conversations/{id}/export — export (format=json|markdown)
//
// Preferences:
//   - GET /api/v1/preferences — caller's preferences (defaults if unset)
//   - PUT /api/v1/preferences — replace caller's preferences
//
// Search:
//   - GET /api/v1/search — direct gateway access (q, limit)
//
// # User Identity
//
// Every request resolves to a user ID. Non-browser clients send an
// X-User-ID header; browsers get an auto-provisioned uid cookie on first
// contact. Conversations and preferences are scoped to that identity.
//
// # Error Handling
//
// Error responses use an envelope format:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Domain sentinels map to HTTP statuses: not-found errors become 404,
// name conflicts 409, validation failures 400, and system-mode writes 403.
// Search backend failures do not produce error statuses; the gateway
// reports them inside the result body so clients always have something
// to render.
//
// # SSE Streaming
//
// Turn responses stream via Server-Sent Events. The event name is the
// stream event type and the data line is the JSON-encoded event:
//
//   - text-delta:       incremental answer text
//   - tool-call-start:  a search tool was invoked
//   - tool-call-result: the invocation finished
//   - artifact:         structured payload (issue result table)
//   - done:             terminal success, carries conversation ID and title
//   - error:            terminal failure, carries code and message
//
// Every stream ends with exactly one terminal event. Errors after the
// stream starts arrive as error events, not HTTP statuses, since the
// headers are already committed.
package api
