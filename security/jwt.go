package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/c360/marinestreams/errors"
)

// TokenQueryParam carries the token on websocket upgrades, where browsers
// cannot set headers.
const TokenQueryParam = "token"

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	Perms []string `json:"perms,omitempty"`
}

// verifiedCacheSize bounds how many distinct tokens skip signature checks.
const verifiedCacheSize = 256

type verifiedToken struct {
	principal Principal
	expires   time.Time // zero when the token never expires
}

// JWT authorizes requests bearing an HS256 token. Tokens that verified once
// are remembered until they expire, so stream clients reconnecting with the
// same token are not re-verified.
type JWT struct {
	secret   []byte
	now      func() time.Time
	verified *lru.Cache[string, verifiedToken]
}

// NewJWT creates a JWT strategy. The secret must not be empty.
func NewJWT(secret string) (*JWT, error) {
	if secret == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "JWT", "NewJWT", "jwt secret is required")
	}
	verified, err := lru.New[string, verifiedToken](verifiedCacheSize)
	if err != nil {
		return nil, errors.WrapFatal(err, "JWT", "NewJWT", "create token cache")
	}
	return &JWT{secret: []byte(secret), now: time.Now, verified: verified}, nil
}

// Issue signs a token for subject with perms, valid for ttl.
func (j *JWT) Issue(subject string, perms []string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Perms: perms,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", errors.WrapFatal(err, "JWT", "Issue", "sign token")
	}
	return signed, nil
}

// Authorize validates the request token and checks capability.
func (j *JWT) Authorize(r *http.Request, capability string) (Principal, error) {
	raw := tokenFrom(r)
	if raw == "" {
		return Principal{}, errors.WrapInvalid(errors.ErrUnauthorized, "JWT", "Authorize", "no token")
	}

	p, err := j.verify(raw)
	if err != nil {
		return Principal{}, err
	}
	if !p.Can(capability) {
		return p, errors.WrapInvalid(
			fmt.Errorf("%w: %s lacks %q", errors.ErrForbidden, p.Identifier, capability), "JWT", "Authorize", "check capability")
	}
	return p, nil
}

// verify checks signature and expiry, consulting the cache first.
func (j *JWT) verify(raw string) (Principal, error) {
	if hit, ok := j.verified.Get(raw); ok {
		if hit.expires.IsZero() || j.now().Before(hit.expires) {
			return hit.principal, nil
		}
		j.verified.Remove(raw)
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Principal{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrUnauthorized, err), "JWT", "Authorize", "validate token")
	}

	p := Principal{Identifier: claims.Subject, Permissions: claims.Perms}
	if p.Identifier == "" {
		p.Identifier = Unknown
	}
	entry := verifiedToken{principal: p}
	if claims.ExpiresAt != nil {
		entry.expires = claims.ExpiresAt.Time
	}
	j.verified.Add(raw, entry)
	return p, nil
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get(TokenQueryParam)
}
