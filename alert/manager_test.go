package alert

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/metric"
)

func ptr[T any](v T) *T { return &v }

// seedManager registers A (alarm, unacknowledged) then B (warning, acknowledged).
func seedManager(t *testing.T, opts ...Option) (*Manager, *Alert, *Alert) {
	t.Helper()
	m := NewManager(&recordingBus{}, opts...)
	a, err := m.Raise(PriorityAlarm, &MetaData{Name: "A"})
	require.NoError(t, err)
	b, err := m.Raise(PriorityWarning, &MetaData{Name: "B"})
	require.NoError(t, err)
	b.Ack()
	return m, a, b
}

func TestManager_List(t *testing.T) {
	m, a, b := seedManager(t)

	tests := []struct {
		name   string
		params ListParams
		want   []string
	}{
		{"all", ListParams{}, []string{a.ID(), b.ID()}},
		{"priority", ListParams{Priority: ptr(PriorityWarning)}, []string{b.ID()}},
		{"unack", ListParams{Unack: ptr("1")}, []string{a.ID()}},
		{"unack zero means all", ListParams{Unack: ptr("0")}, []string{a.ID(), b.ID()}},
		{"priority wins over unack", ListParams{Priority: ptr(PriorityWarning), Unack: ptr("1")}, []string{b.ID()}},
		{"top keeps most recent", ListParams{Top: ptr(1)}, []string{b.ID()}},
		{"top larger than result", ListParams{Top: ptr(10)}, []string{a.ID(), b.ID()}},
		{"top zero keeps all", ListParams{Top: ptr(0)}, []string{a.ID(), b.ID()}},
		{"no match", ListParams{Priority: ptr(PriorityCaution)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.List(tt.params)
			assert.Len(t, got, len(tt.want))
			for _, id := range tt.want {
				assert.Contains(t, got, id)
			}
		})
	}
}

func TestManager_ListUnackIncludesEmergency(t *testing.T) {
	m := NewManager(nil)
	e, err := m.MOB(MetaData{Name: "Crew overboard"})
	require.NoError(t, err)
	_, err = m.Raise(PriorityCaution, nil)
	require.NoError(t, err)

	got := m.List(ListParams{Unack: ptr("true")})
	assert.Len(t, got, 1)
	assert.Contains(t, got, e.ID())
}

func TestManager_Delete(t *testing.T) {
	m, a, b := seedManager(t)

	err := m.Delete(a.ID())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlertActive)
	assert.Equal(t, 2, m.Len())

	b.Resolve()
	require.NoError(t, m.Delete(b.ID()))
	_, ok := m.Get(b.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	assert.NoError(t, m.Delete("no-such-alert"))
}

func TestManager_DeleteDecidesUnderAlertLock(t *testing.T) {
	m, a, _ := seedManager(t)
	a.Resolve()
	require.True(t, a.CanRemove())

	// hold the alert while Delete runs and raise it before releasing
	a.mu.Lock()
	done := make(chan error, 1)
	go func() { done <- m.Delete(a.ID()) }()

	select {
	case err := <-done:
		a.mu.Unlock()
		t.Fatalf("Delete returned %v without taking the alert lock", err)
	case <-time.After(20 * time.Millisecond):
	}
	a.updatePriorityLocked(PriorityEmergency)
	a.mu.Unlock()

	err := <-done
	assert.ErrorIs(t, err, errors.ErrAlertActive)
	_, ok := m.Get(a.ID())
	assert.True(t, ok)
	assert.False(t, a.CanRemove())
}

func TestManager_DeleteRacingRaise(t *testing.T) {
	m := NewManager(nil)
	for i := 0; i < 200; i++ {
		a, err := m.Raise(PriorityWarning, nil)
		require.NoError(t, err)
		a.Resolve()

		var wg sync.WaitGroup
		var delErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			delErr = m.Delete(a.ID())
		}()
		go func() {
			defer wg.Done()
			_ = a.UpdatePriority(PriorityAlarm)
		}()
		wg.Wait()

		_, registered := m.Get(a.ID())
		if delErr != nil {
			assert.True(t, registered, "a refused delete keeps the alert")
		} else {
			assert.False(t, registered)
		}
		a.Destroy()
	}
}

func TestManager_AckAll(t *testing.T) {
	m, a, b := seedManager(t)
	c, err := m.Raise(PriorityCaution, nil)
	require.NoError(t, err)

	m.AckAll()
	for _, al := range []*Alert{a, b, c} {
		v := al.Value()
		assert.True(t, v.Acknowledged)
		assert.Equal(t, AlarmActive, v.AlarmState)
	}
	assert.Empty(t, m.List(ListParams{Unack: ptr("1")}))
}

func TestManager_SilenceAll(t *testing.T) {
	m, a, _ := seedManager(t, WithSilenceDuration(time.Minute))
	defer m.Close()

	second, err := m.Raise(PriorityAlarm, nil)
	require.NoError(t, err)
	second.Resolve()

	assert.Equal(t, 1, m.SilenceAll())
	assert.True(t, a.Value().Silenced)
	assert.False(t, second.Value().Silenced)
}

func TestManager_Clean(t *testing.T) {
	m, a, b := seedManager(t)
	b.Resolve()

	assert.Equal(t, 1, m.Clean())
	assert.Equal(t, 1, m.Len())
	_, ok := m.Get(a.ID())
	assert.True(t, ok)

	assert.Equal(t, 0, m.Clean())
}

func TestManager_MOB(t *testing.T) {
	bus := &recordingBus{}
	m := NewManager(bus)

	a, err := m.MOB(MetaData{Name: "Crew overboard", Message: "Person in water", SourceRef: "mob-button", Path: "ignored"})
	require.NoError(t, err)

	v := a.Value()
	assert.Equal(t, PriorityEmergency, v.Priority)
	assert.Equal(t, AlarmActive, v.AlarmState)
	assert.Equal(t, "mob", v.MetaData.Path)

	ev := bus.last()
	assert.Equal(t, "notifications.mob."+a.ID(), ev.path)
	assert.Equal(t, "mob-button", ev.source)
	assert.Equal(t, "emergency", ev.value.State)
}

func TestManager_InvalidPriority(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Raise(Priority("low"), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidPriority)
	assert.Equal(t, 0, m.Len())
}

func TestManager_AlertsLiveGauge(t *testing.T) {
	metrics := metric.NewMetrics()
	m, _, b := seedManager(t, WithMetrics(metrics))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AlertsLive))

	b.Resolve()
	m.Clean()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AlertsLive))
}
