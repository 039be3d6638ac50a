// Package http serves the hub's HTTP surface on a chi router: the alerts
// REST API, the binary stream websocket upgrades, the delta websocket, the
// stream listing, health and Prometheus metrics.
//
// Alert routes answer with the envelope
//
//	{"state": "COMPLETED", "statusCode": 201, "id": "<alert id>"}
//
// or, on failure, {"state": "FAILED", "statusCode": 400, "message": "..."}.
// Mutating routes need the "alerts" capability from the configured
// security.Strategy; stream upgrades need "streams" and fail with 401 before
// the upgrade.
package http
