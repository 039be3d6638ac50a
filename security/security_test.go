package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/marinestreams/errors"
)

func TestDisabled(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/signalk/v2/api/alerts", nil)
	p, err := Disabled{}.Authorize(r, CapabilityAlerts)
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, p.Identifier)
	assert.True(t, p.Can(CapabilityStreams))
}

func TestPrincipal_Can(t *testing.T) {
	tests := []struct {
		name       string
		perms      []string
		capability string
		want       bool
	}{
		{"read needs nothing", nil, CapabilityRead, true},
		{"exact", []string{CapabilityAlerts}, CapabilityAlerts, true},
		{"missing", []string{CapabilityAlerts}, CapabilityStreams, false},
		{"wildcard", []string{WildcardPermission}, CapabilityStreams, true},
		{"none", nil, CapabilityAlerts, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Principal{Identifier: "x", Permissions: tt.perms}.Can(tt.capability))
		})
	}
}

func newJWT(t *testing.T) *JWT {
	t.Helper()
	j, err := NewJWT("test-secret")
	require.NoError(t, err)
	return j
}

func TestNewJWT_RequiresSecret(t *testing.T) {
	_, err := NewJWT("")
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestJWT_Authorize(t *testing.T) {
	j := newJWT(t)
	token, err := j.Issue("helm", []string{CapabilityAlerts}, time.Hour)
	require.NoError(t, err)

	t.Run("bearer header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		p, err := j.Authorize(r, CapabilityAlerts)
		require.NoError(t, err)
		assert.Equal(t, "helm", p.Identifier)
	})

	t.Run("query parameter", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
		_, err := j.Authorize(r, CapabilityRead)
		require.NoError(t, err)
	})

	t.Run("missing capability", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
		p, err := j.Authorize(r, CapabilityStreams)
		assert.ErrorIs(t, err, errors.ErrForbidden)
		assert.Equal(t, http.StatusForbidden, errors.HTTPStatus(err))
		assert.Equal(t, "helm", p.Identifier)
	})

	t.Run("no token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := j.Authorize(r, CapabilityRead)
		assert.ErrorIs(t, err, errors.ErrUnauthorized)
		assert.Equal(t, http.StatusUnauthorized, errors.HTTPStatus(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/?token=not.a.jwt", nil)
		_, err := j.Authorize(r, CapabilityRead)
		assert.ErrorIs(t, err, errors.ErrUnauthorized)
	})
}

func TestJWT_RejectsOtherSecret(t *testing.T) {
	other, err := NewJWT("other-secret")
	require.NoError(t, err)
	token, err := other.Issue("helm", []string{WildcardPermission}, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	_, err = newJWT(t).Authorize(r, CapabilityRead)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestJWT_Expired(t *testing.T) {
	j := newJWT(t)
	token, err := j.Issue("helm", []string{WildcardPermission}, time.Minute)
	require.NoError(t, err)

	j.now = func() time.Time { return time.Now().Add(time.Hour) }
	r := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	_, err = j.Authorize(r, CapabilityRead)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Perms: []string{WildcardPermission}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/?token="+unsigned, nil)
	_, err = newJWT(t).Authorize(r, CapabilityRead)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestJWT_UnknownSubject(t *testing.T) {
	j := newJWT(t)
	token, err := j.Issue("", []string{WildcardPermission}, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	p, err := j.Authorize(r, CapabilityStreams)
	require.NoError(t, err)
	assert.Equal(t, Unknown, p.Identifier)
}

func TestJWT_VerifiedTokenCache(t *testing.T) {
	j := newJWT(t)
	token, err := j.Issue("chartplotter", []string{CapabilityStreams}, time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	_, err = j.Authorize(r, CapabilityStreams)
	require.NoError(t, err)
	assert.Equal(t, 1, j.verified.Len())

	// a cached token still gets its capability checked
	_, err = j.Authorize(r, CapabilityAlerts)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	j.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = j.Authorize(r, CapabilityStreams)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Zero(t, j.verified.Len())
}
