package alert

import (
	"encoding/json"
	"maps"

	"github.com/c360/marinestreams/delta"
)

// DefaultSourceRef tags notifications from alerts that carry no sourceRef.
const DefaultSourceRef = "alertsApi"

// Reserved metadata keys.
const (
	keyName      = "name"
	keyMessage   = "message"
	keyPosition  = "position"
	keyPath      = "path"
	keySourceRef = "sourceRef"
)

// MetaData describes an alert. The reserved fields have defined meaning;
// every other key lives in Extra and is passed through untouched. It
// marshals as one flat JSON object.
type MetaData struct {
	Name      string
	Message   string
	Position  *delta.Position
	Path      string
	SourceRef string
	Extra     map[string]any

	// reserved keys a decoded object carried, so "" and null still count
	present fieldSet
}

type fieldSet uint8

const (
	hasName fieldSet = 1 << iota
	hasMessage
	hasPosition
	hasPath
	hasSourceRef
)

func (m MetaData) carries(f fieldSet) bool {
	if m.present&f != 0 {
		return true
	}
	switch f {
	case hasName:
		return m.Name != ""
	case hasMessage:
		return m.Message != ""
	case hasPosition:
		return m.Position != nil
	case hasPath:
		return m.Path != ""
	case hasSourceRef:
		return m.SourceRef != ""
	}
	return false
}

// IsZero reports whether m carries no key at all.
func (m MetaData) IsZero() bool {
	for f := hasName; f <= hasSourceRef; f <<= 1 {
		if m.carries(f) {
			return false
		}
	}
	return len(m.Extra) == 0
}

// Merge returns m with other shallow-merged over it. Every reserved key
// other carries overrides, including an explicit empty value; Extra keys
// override key by key.
func (m MetaData) Merge(other MetaData) MetaData {
	out := m.Clone()
	if other.carries(hasName) {
		out.Name = other.Name
		out.present |= hasName
	}
	if other.carries(hasMessage) {
		out.Message = other.Message
		out.present |= hasMessage
	}
	if other.carries(hasPosition) {
		out.Position = nil
		if other.Position != nil {
			p := *other.Position
			out.Position = &p
		}
		out.present |= hasPosition
	}
	if other.carries(hasPath) {
		out.Path = other.Path
		out.present |= hasPath
	}
	if other.carries(hasSourceRef) {
		out.SourceRef = other.SourceRef
		out.present |= hasSourceRef
	}
	if len(other.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(other.Extra))
		}
		maps.Copy(out.Extra, other.Extra)
	}
	return out
}

// Clone returns a copy that shares nothing mutable with m at the top level.
func (m MetaData) Clone() MetaData {
	out := m
	if m.Position != nil {
		p := *m.Position
		out.Position = &p
	}
	out.Extra = maps.Clone(m.Extra)
	return out
}

// Map flattens m into a plain map with only the carried keys.
func (m MetaData) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+5)
	maps.Copy(out, m.Extra)
	if m.carries(hasName) {
		out[keyName] = m.Name
	}
	if m.carries(hasMessage) {
		out[keyMessage] = m.Message
	}
	if m.carries(hasPosition) {
		if m.Position != nil {
			out[keyPosition] = *m.Position
		} else {
			out[keyPosition] = nil
		}
	}
	if m.carries(hasPath) {
		out[keyPath] = m.Path
	}
	if m.carries(hasSourceRef) {
		out[keySourceRef] = m.SourceRef
	}
	return out
}

// MarshalJSON writes m as a flat object.
func (m MetaData) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON reads a flat object, lifting reserved keys into their fields.
// A reserved key with the wrong JSON type is an error.
func (m *MetaData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = MetaData{}
	for key, value := range raw {
		var err error
		switch key {
		case keyName:
			m.present |= hasName
			err = json.Unmarshal(value, &m.Name)
		case keyMessage:
			m.present |= hasMessage
			err = json.Unmarshal(value, &m.Message)
		case keyPath:
			m.present |= hasPath
			err = json.Unmarshal(value, &m.Path)
		case keySourceRef:
			m.present |= hasSourceRef
			err = json.Unmarshal(value, &m.SourceRef)
		case keyPosition:
			m.present |= hasPosition
			if string(value) == "null" {
				break
			}
			var p delta.Position
			if err = json.Unmarshal(value, &p); err == nil {
				m.Position = &p
			}
		default:
			var v any
			if err = json.Unmarshal(value, &v); err == nil {
				if m.Extra == nil {
					m.Extra = make(map[string]any)
				}
				m.Extra[key] = v
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
