// Package api implements the HTTP front of the Neogend session authority.
//
// It exposes:
//   - login, renewal (cookie based), logout and own-session endpoints
//   - administrator endpoints for accounts, privileges and forced disconnects
//   - the audit trail and process metrics for administrators
//   - a WebSocket session channel that is closed when its credentials are
//     revoked
//
// # Security
//
// Every protected route passes through the auth.Verifier; admin mutations
// additionally pass the auth.Guard. Rejected credentials always produce the
// same 401 body, the precise reason only reaches the logs. The renewal token
// travels exclusively in an HttpOnly cookie scoped to /api/v1/auth/refresh.
// WebSocket connections use single-use tickets so access tokens never appear
// in URLs.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
