package security

import (
	"net/http"
	"slices"
)

// Capabilities checked by the gateway. An empty capability only requires
// an authenticated principal.
const (
	CapabilityAlerts  = "alerts"
	CapabilityStreams = "streams"
	CapabilityRead    = ""
)

// Principal identifiers used when no real identity is available.
const (
	Unauthenticated = "unauthenticated"
	Unknown         = "unknown"
)

// WildcardPermission grants every capability.
const WildcardPermission = "*"

// Principal is the identity behind a request.
type Principal struct {
	Identifier  string   `json:"identifier"`
	Permissions []string `json:"permissions,omitempty"`
}

// Can reports whether p holds capability.
func (p Principal) Can(capability string) bool {
	if capability == CapabilityRead {
		return true
	}
	return slices.Contains(p.Permissions, WildcardPermission) || slices.Contains(p.Permissions, capability)
}

// Strategy authorizes requests.
type Strategy interface {
	Authorize(r *http.Request, capability string) (Principal, error)
}

// Disabled authorizes every request.
type Disabled struct{}

// Authorize returns the unauthenticated principal.
func (Disabled) Authorize(*http.Request, string) (Principal, error) {
	return Principal{Identifier: Unauthenticated, Permissions: []string{WildcardPermission}}, nil
}
