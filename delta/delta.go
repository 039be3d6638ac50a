// Package delta defines the wire model shared by every producer on the event
// bus: deltas, updates, path/value pairs and notification values.
package delta

import (
	"encoding/json"
	"time"
)

// Context identifies the subject a delta is about, e.g. "vessels.self".
type Context string

// SelfContext is applied by the event bus when a producer leaves Context empty.
const SelfContext Context = "vessels.self"

// SourceRef names the producer of an update.
type SourceRef string

// TimestampFormat is the layout the event bus stamps updates with.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// PathValue is one data point inside an update.
type PathValue struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Update is a batch of values from one source. Producers leave Source and
// Timestamp empty; the event bus stamps both.
type Update struct {
	Timestamp string      `json:"timestamp,omitempty"`
	Source    SourceRef   `json:"$source,omitempty"`
	Values    []PathValue `json:"values"`
}

// Delta is the base unit of the event bus.
type Delta struct {
	Context Context  `json:"context,omitempty"`
	Updates []Update `json:"updates"`
}

// Single builds a delta carrying one value.
func Single(path string, value any) Delta {
	return Delta{
		Updates: []Update{{
			Values: []PathValue{{Path: path, Value: value}},
		}},
	}
}

// Stamp returns a copy of d with every update stamped with source and ts and
// the context defaulted to SelfContext. Producer-supplied timestamps and
// sources are overwritten.
func (d Delta) Stamp(source SourceRef, ts time.Time) Delta {
	out := Delta{Context: d.Context, Updates: make([]Update, len(d.Updates))}
	if out.Context == "" {
		out.Context = SelfContext
	}

	stamp := ts.UTC().Format(TimestampFormat)
	for i, u := range d.Updates {
		u.Timestamp = stamp
		u.Source = source
		out.Updates[i] = u
	}
	return out
}

// Paths lists every path carried by the delta, in order.
func (d Delta) Paths() []string {
	var paths []string
	for _, u := range d.Updates {
		for _, v := range u.Values {
			paths = append(paths, v.Path)
		}
	}
	return paths
}

// Method is a presentation channel for a notification.
type Method string

const (
	MethodVisual Method = "visual"
	MethodSound  Method = "sound"
)

// Position is a geographic fix attached to alert metadata.
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// Notification is the value emitted under notifications.* paths.
type Notification struct {
	ID       string         `json:"id"`
	Method   []Method       `json:"method"`
	State    string         `json:"state"`
	Message  string         `json:"message"`
	MetaData map[string]any `json:"metaData"`
}

// MarshalJSON keeps Method a JSON array even when empty.
func (n Notification) MarshalJSON() ([]byte, error) {
	type plain Notification
	if n.Method == nil {
		n.Method = []Method{}
	}
	return json.Marshal(plain(n))
}
