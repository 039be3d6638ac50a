// Package security decides whether an HTTP request may use a capability.
//
// A Strategy inspects the request and returns the Principal behind it.
// Disabled lets everything through as the "unauthenticated" principal; JWT
// validates an HS256 token taken from the Authorization header, or from the
// token query parameter on websocket upgrades, and checks the requested
// capability against the token's perms claim. A "*" permission grants every
// capability.
//
// Verified tokens are kept in a small LRU until their exp claim passes, so a
// radar display reconnecting every few seconds costs one signature check.
//
// Failures are classified errors wrapping ErrUnauthorized (401) or
// ErrForbidden (403), so errors.HTTPStatus maps them directly.
package security
