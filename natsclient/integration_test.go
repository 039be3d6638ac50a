//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_PublishSubscribe(t *testing.T) {
	tc := NewTestClient(t)
	ctx := context.Background()

	type received struct {
		subject string
		data    string
	}
	got := make(chan received, 1)

	err := tc.Client.Subscribe(ctx, "marinestreams.frames.>", func(_ context.Context, subject string, data []byte) {
		got <- received{subject, string(data)}
	})
	require.NoError(t, err)
	require.NoError(t, tc.Client.Flush(ctx))

	require.NoError(t, tc.Client.Publish(ctx, "marinestreams.frames.radars.0", []byte("spoke")))

	select {
	case r := <-got:
		assert.Equal(t, "marinestreams.frames.radars.0", r.subject)
		assert.Equal(t, "spoke", r.data)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}

func TestIntegration_StatusAndRTT(t *testing.T) {
	tc := NewTestClient(t)

	assert.True(t, tc.Client.IsHealthy())
	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	stats := tc.Client.Stats()
	assert.Equal(t, StatusConnected, stats.Status)
	assert.Equal(t, int32(0), stats.Failures)
}
