package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/marinestreams/alert"
	"github.com/c360/marinestreams/delta"
	"github.com/c360/marinestreams/security"
)

func (f *fixture) create(t *testing.T, body any) string {
	t.Helper()
	code, data := f.do(t, http.MethodPost, AlertsPath, body)
	require.Equal(t, http.StatusCreated, code, string(data))
	env := decodeEnvelope(t, data)
	require.Equal(t, StateCompleted, env.State)
	require.NotEmpty(t, env.ID)
	return env.ID
}

func TestCreateAlert(t *testing.T) {
	f := newFixture(t, nil)

	id := f.create(t, map[string]any{
		"priority": "warning",
		"properties": map[string]any{
			"name":     "Bilge",
			"message":  "High water",
			"position": map[string]any{"latitude": 60.1, "longitude": 24.9},
			"zone":     "aft",
		},
	})

	a, ok := f.alerts.Get(id)
	require.True(t, ok)
	v := a.Value()
	assert.Equal(t, alert.PriorityWarning, v.Priority)
	assert.Equal(t, "High water", v.MetaData.Message)
	assert.Equal(t, "aft", v.MetaData.Extra["zone"])
}

func TestCreateAlert_InvalidPriority(t *testing.T) {
	f := newFixture(t, nil)

	for name, body := range map[string]any{
		"missing": map[string]any{},
		"unknown": map[string]any{"priority": "loud"},
		"empty":   nil,
		"number":  map[string]any{"priority": 3},
	} {
		t.Run(name, func(t *testing.T) {
			code, data := f.do(t, http.MethodPost, AlertsPath, body)
			assert.Equal(t, http.StatusBadRequest, code)
			env := decodeEnvelope(t, data)
			assert.Equal(t, StateFailed, env.State)
			assert.Equal(t, http.StatusBadRequest, env.StatusCode)
			assert.Equal(t, msgInvalidPriority, env.Message)
		})
	}
	assert.Equal(t, 0, f.alerts.Len())
}

func TestCreateAlert_BadBody(t *testing.T) {
	f := newFixture(t, nil)

	code, data := f.do(t, http.MethodPost, AlertsPath, `{"priority":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Request body is not valid JSON", decodeEnvelope(t, data).Message)

	code, data = f.do(t, http.MethodPost, AlertsPath, map[string]any{
		"priority":   "alarm",
		"properties": map[string]any{"position": map[string]any{"latitude": 123.0, "longitude": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, decodeEnvelope(t, data).Message, "latitude")
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, map[string]any{"priority": "alarm"})
	b := f.create(t, map[string]any{"priority": "warning"})
	code, _ := f.do(t, http.MethodPost, AlertsPath+"/"+b+"/ack", nil)
	require.Equal(t, http.StatusCreated, code)

	list := func(query string) map[string]alert.Value {
		code, data := f.do(t, http.MethodGet, AlertsPath+query, nil)
		require.Equal(t, http.StatusOK, code)
		var out map[string]alert.Value
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	}

	assert.Len(t, list(""), 2)
	assert.Contains(t, list("?unack=1"), a)
	assert.Len(t, list("?unack=1"), 1)
	assert.Len(t, list("?unack=0"), 2)
	assert.Contains(t, list("?priority=warning"), b)
	assert.Len(t, list("?priority=warning&unack=1"), 1)
	assert.Contains(t, list("?top=1"), b)
	assert.Len(t, list("?top=bogus"), 2)

	code, data := f.do(t, http.MethodGet, AlertsPath+"/"+a, nil)
	require.Equal(t, http.StatusOK, code)
	var v alert.Value
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, a, v.ID)
	assert.Equal(t, alert.AlarmActive, v.AlarmState)

	code, data = f.do(t, http.MethodGet, AlertsPath+"/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, StateFailed, decodeEnvelope(t, data).State)
}

func TestMOB(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.hub.Subscribe(t.Context(), 8)

	code, data := f.do(t, http.MethodPost, AlertsPath+"/mob",
		map[string]any{"name": "Crew", "message": "Person overboard", "sourceRef": "mob-button"})
	require.Equal(t, http.StatusCreated, code)
	id := decodeEnvelope(t, data).ID

	a, ok := f.alerts.Get(id)
	require.True(t, ok)
	assert.Equal(t, alert.PriorityEmergency, a.Value().Priority)
	assert.Equal(t, "mob", a.Value().MetaData.Path)

	select {
	case d := <-sub.C():
		require.Len(t, d.Updates, 1)
		assert.Equal(t, delta.SourceRef("mob-button"), d.Updates[0].Source)
		assert.Equal(t, "notifications.mob."+id, d.Updates[0].Values[0].Path)
	case <-time.After(time.Second):
		t.Fatal("no notification delta")
	}

	code, _ = f.do(t, http.MethodPost, AlertsPath+"/mob", nil)
	assert.Equal(t, http.StatusCreated, code)
}

func TestAlertLifecycleRoutes(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t, map[string]any{"priority": "alarm"})
	a, _ := f.alerts.Get(id)
	path := AlertsPath + "/" + id

	code, data := f.do(t, http.MethodPost, path+"/silence", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, id, decodeEnvelope(t, data).ID)
	assert.True(t, a.Value().Silenced)

	code, _ = f.do(t, http.MethodPost, path+"/ack", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, a.Value().Acknowledged)
	assert.False(t, a.Value().Silenced)

	code, _ = f.do(t, http.MethodPost, path+"/unack", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.False(t, a.Value().Acknowledged)

	code, _ = f.do(t, http.MethodPut, path+"/priority", map[string]any{"value": "caution"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, alert.PriorityCaution, a.Value().Priority)

	code, data = f.do(t, http.MethodPut, path+"/priority", map[string]any{"value": "panic"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgInvalidPriority, decodeEnvelope(t, data).Message)

	code, _ = f.do(t, http.MethodPut, path+"/properties", map[string]any{"name": "Smoke", "deck": 2})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Smoke", a.Value().MetaData.Name)

	code, _ = f.do(t, http.MethodPut, path+"/properties", map[string]any{"name": "", "zone": "aft"})
	require.Equal(t, http.StatusCreated, code)
	assert.Empty(t, a.Value().MetaData.Name)
	assert.Equal(t, "aft", a.Value().MetaData.Extra["zone"])

	code, data = f.do(t, http.MethodPut, path+"/properties", map[string]any{"message": ""})
	require.Equal(t, http.StatusCreated, code, string(data))
	assert.Empty(t, a.Value().MetaData.Message)

	code, data = f.do(t, http.MethodPut, path+"/properties", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgNoProperties, decodeEnvelope(t, data).Message)

	code, data = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgAlertActive, decodeEnvelope(t, data).Message)

	code, _ = f.do(t, http.MethodPost, path+"/resolve", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.NotNil(t, a.Value().Resolved)

	code, data = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, id, decodeEnvelope(t, data).ID)
	assert.Equal(t, 0, f.alerts.Len())
}

func TestSilence_RejectsNonAlarm(t *testing.T) {
	f := newFixture(t, nil)
	id := f.create(t, map[string]any{"priority": "warning"})

	code, data := f.do(t, http.MethodPost, AlertsPath+"/"+id+"/silence", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgSilenceFailed, decodeEnvelope(t, data).Message)

	code, _ = f.do(t, http.MethodPost, AlertsPath+"/unknown/silence", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownIDsComplete(t *testing.T) {
	f := newFixture(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/ghost/ack"},
		{http.MethodPost, "/ghost/unack"},
		{http.MethodPost, "/ghost/resolve"},
		{http.MethodDelete, "/ghost"},
	} {
		code, data := f.do(t, tc.method, AlertsPath+tc.path, nil)
		assert.Equal(t, http.StatusCreated, code, tc.path)
		assert.Equal(t, "ghost", decodeEnvelope(t, data).ID)
	}
}

func TestBulkRoutes(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, map[string]any{"priority": "alarm"})
	b := f.create(t, map[string]any{"priority": "caution"})

	code, _ := f.do(t, http.MethodPost, AlertsPath+"/silence", nil)
	require.Equal(t, http.StatusCreated, code)
	alarm, _ := f.alerts.Get(a)
	assert.True(t, alarm.Value().Silenced)

	code, _ = f.do(t, http.MethodPost, AlertsPath+"/ack", nil)
	require.Equal(t, http.StatusCreated, code)
	caution, _ := f.alerts.Get(b)
	assert.True(t, caution.Value().Acknowledged)

	caution.Resolve()
	code, _ = f.do(t, http.MethodDelete, AlertsPath, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, 1, f.alerts.Len())
}

func TestAlertRoutes_JWT(t *testing.T) {
	j, err := security.NewJWT("s3cret")
	require.NoError(t, err)
	f := newFixture(t, j)

	reader, err := j.Issue("display", nil, time.Hour)
	require.NoError(t, err)
	writer, err := j.Issue("helm", []string{security.CapabilityAlerts}, time.Hour)
	require.NoError(t, err)

	code, _ := f.do(t, http.MethodPost, AlertsPath, map[string]any{"priority": "alarm"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, data := f.do(t, http.MethodPost, AlertsPath, map[string]any{"priority": "alarm"},
		"Authorization", "Bearer "+reader)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, StateFailed, decodeEnvelope(t, data).State)

	code, _ = f.do(t, http.MethodGet, AlertsPath, nil, "Authorization", "Bearer "+reader)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, AlertsPath, map[string]any{"priority": "alarm"},
		"Authorization", "Bearer "+writer)
	assert.Equal(t, http.StatusCreated, code)
}
