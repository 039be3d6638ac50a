package delta

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 45, 123_000_000, time.FixedZone("CET", 3600))

	d := Single("navigation.speedOverGround", 3.2)
	d.Updates[0].Source = "spoofed"
	d.Updates[0].Timestamp = "1970-01-01T00:00:00.000Z"

	stamped := d.Stamp("alertsApi", ts)

	assert.Equal(t, SelfContext, stamped.Context)
	require.Len(t, stamped.Updates, 1)
	assert.Equal(t, "2026-03-01T11:30:45.123Z", stamped.Updates[0].Timestamp)
	assert.Equal(t, SourceRef("alertsApi"), stamped.Updates[0].Source)

	// the original is untouched
	assert.Equal(t, SourceRef("spoofed"), d.Updates[0].Source)
	assert.Empty(t, d.Context)
}

func TestStampKeepsContext(t *testing.T) {
	d := Delta{Context: "vessels.urn:mrn:imo:mmsi:230000000", Updates: []Update{{}}}
	assert.Equal(t, d.Context, d.Stamp("x", time.Now()).Context)
}

func TestPaths(t *testing.T) {
	d := Delta{Updates: []Update{
		{Values: []PathValue{{Path: "a"}, {Path: "b"}}},
		{Values: []PathValue{{Path: "c"}}},
	}}
	assert.Equal(t, []string{"a", "b", "c"}, d.Paths())
}

func TestWireFormat(t *testing.T) {
	d := Single("notifications.mob.1", Notification{ID: "1", State: "emergency"}).
		Stamp("alertsApi", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "vessels.self", decoded["context"])
	update := decoded["updates"].([]any)[0].(map[string]any)
	assert.Equal(t, "alertsApi", update["$source"])
	assert.Equal(t, "2026-01-02T03:04:05.000Z", update["timestamp"])

	value := update["values"].([]any)[0].(map[string]any)["value"].(map[string]any)
	assert.Equal(t, []any{}, value["method"])
}

func TestStampRewritesOnlyEnvelope(t *testing.T) {
	pos := Position{Latitude: 60.15, Longitude: 24.95}
	d := Delta{Updates: []Update{
		{Values: []PathValue{{Path: "navigation.position", Value: pos}}},
		{Source: "n2k.115", Values: []PathValue{
			{Path: "notifications.mob.1", Value: Notification{ID: "1", State: "emergency", Method: []Method{MethodSound}}},
		}},
	}}

	got := d.Stamp("alertsApi", time.Unix(0, 0))

	want := Delta{Context: SelfContext, Updates: []Update{
		{Timestamp: "1970-01-01T00:00:00.000Z", Source: "alertsApi",
			Values: []PathValue{{Path: "navigation.position", Value: pos}}},
		{Timestamp: "1970-01-01T00:00:00.000Z", Source: "alertsApi", Values: []PathValue{
			{Path: "notifications.mob.1", Value: Notification{ID: "1", State: "emergency", Method: []Method{MethodSound}}},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stamp() mismatch (-want +got):\n%s", diff)
	}
}
