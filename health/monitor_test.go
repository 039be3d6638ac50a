package health

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_SetAndGet(t *testing.T) {
	m := NewMonitor(nil)
	m.Set("alerts", StateHealthy, "12 live")
	m.Set("nats", StateDegraded, "reconnecting")

	s, ok := m.Get("alerts")
	require.True(t, ok)
	assert.True(t, s.IsHealthy())
	assert.False(t, s.Timestamp.IsZero())
	require.NotNil(t, s.Metrics)
	assert.Zero(t, s.Metrics.Failures)

	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"alerts", "nats"}, m.Components())

	agg := m.AggregateHealth("marinestreams")
	assert.True(t, agg.IsDegraded())
	assert.Equal(t, "degraded: nats", agg.Message)
	assert.Equal(t, "alerts", agg.SubStatuses[0].Component)

	m.Remove("nats")
	assert.True(t, m.AggregateHealth("marinestreams").IsHealthy())
	assert.Equal(t, []string{"alerts"}, m.Components())
}

func TestMonitor_Probes(t *testing.T) {
	m := NewMonitor(nil)
	var natsUp atomic.Bool

	m.AddProbe("streams", func(context.Context) error { return nil })
	m.AddProbe("nats", func(context.Context) error {
		if natsUp.Load() {
			return nil
		}
		return Degraded(stderrors.New("nats disconnected"))
	})

	m.Check(context.Background())
	m.Check(context.Background())
	s, ok := m.Get("nats")
	require.True(t, ok)
	assert.True(t, s.IsDegraded())
	require.NotNil(t, s.Metrics)
	assert.Equal(t, 2, s.Metrics.Failures)
	firstChange := s.Metrics.LastChange

	natsUp.Store(true)
	m.Check(context.Background())
	s, _ = m.Get("nats")
	assert.True(t, s.IsHealthy())
	assert.Zero(t, s.Metrics.Failures)
	assert.False(t, s.Metrics.LastChange.Before(firstChange))
	assert.True(t, m.AggregateHealth("marinestreams").IsHealthy())
}

func TestMonitor_LastChangeStableWhileStateHolds(t *testing.T) {
	m := NewMonitor(nil)
	m.Set("nats", StateDegraded, "reconnecting")
	first, _ := m.Get("nats")

	time.Sleep(5 * time.Millisecond)
	m.Set("nats", StateDegraded, "still reconnecting")
	second, _ := m.Get("nats")

	assert.Equal(t, first.Metrics.LastChange, second.Metrics.LastChange)
	assert.Equal(t, 2, second.Metrics.Failures)
}

func TestMonitor_RemoveDropsProbe(t *testing.T) {
	m := NewMonitor(nil)
	m.AddProbe("nats", func(context.Context) error { return nil })
	m.Check(context.Background())
	m.Remove("nats")
	m.Check(context.Background())

	_, ok := m.Get("nats")
	assert.False(t, ok)
}

func TestMonitor_Run(t *testing.T) {
	m := NewMonitor(nil)
	var calls atomic.Int32
	m.AddProbe("alerts", func(context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor(nil)
	m.AddProbe("p", func(context.Context) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set("c", StateHealthy, "ok")
				m.Check(context.Background())
				_ = m.AggregateHealth("root")
				_ = m.Components()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"c", "p"}, m.Components())
}
