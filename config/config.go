package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/pkg/tlsutil"
)

// EnvPrefix prefixes every environment override, e.g. MARINESTREAMS_HTTP_ADDR.
const EnvPrefix = "MARINESTREAMS"

// Config represents the complete hub configuration
type Config struct {
	Version  string         `json:"version,omitempty"`
	Platform PlatformConfig `json:"platform"`
	HTTP     HTTPConfig     `json:"http"`
	NATS     NATSConfig     `json:"nats"`
	Security SecurityConfig `json:"security"`
	Alerts   AlertsConfig   `json:"alerts"`
	Streams  StreamsConfig  `json:"streams"`
	EventBus EventBusConfig `json:"eventbus"`
}

// PlatformConfig identifies the vessel this hub runs on
type PlatformConfig struct {
	ID          string `json:"id"`                    // Vessel identifier (e.g., "urn:mrn:imo:mmsi:230099999")
	Name        string `json:"name,omitempty"`        // Human readable vessel name
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// HTTPConfig defines the REST and websocket listener
type HTTPConfig struct {
	Addr              string               `json:"addr"`
	MaxRequestSize    int64                `json:"max_request_size"`
	CORSOrigins       []string             `json:"cors_origins,omitempty"`
	WriteTimeout      time.Duration        `json:"write_timeout"`
	PingInterval      time.Duration        `json:"ping_interval"`
	StreamQueueFrames int                  `json:"stream_queue_frames"` // Per-socket outbound frame queue
	TLS               tlsutil.ServerConfig `json:"tls"`
}

// NATSConfig defines NATS connection settings. No URLs means the hub runs
// standalone without forwarding or the stream bridge.
type NATSConfig struct {
	URLs          []string             `json:"urls,omitempty"`
	MaxReconnects int                  `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration        `json:"reconnect_wait,omitempty"`
	Username      string               `json:"username,omitempty"`
	Password      string               `json:"password,omitempty"`
	Token         string               `json:"token,omitempty"`
	TLS           tlsutil.ClientConfig `json:"tls"`
}

// Enabled reports whether a NATS server is configured.
func (n NATSConfig) Enabled() bool {
	return len(n.URLs) > 0
}

// SecurityConfig selects the request authorization strategy
type SecurityConfig struct {
	Enabled   bool   `json:"enabled"`
	JWTSecret string `json:"jwt_secret,omitempty"`
}

// AlertsConfig tunes the alert state machine
type AlertsConfig struct {
	SilenceDuration time.Duration `json:"silence_duration"`
	EscalateAfter   time.Duration `json:"escalation_after"` // 0 disables escalation
}

// StreamsConfig tunes the binary stream manager
type StreamsConfig struct {
	BufferedFrames      int    `json:"buffered_frames"`
	MaxBufferedBytes    int    `json:"max_buffered_bytes"`
	MaxConsecutiveDrops int    `json:"max_consecutive_drops"`
	LogEvery            int    `json:"log_every"`
	SubjectPrefix       string `json:"subject_prefix"` // NATS prefix for <prefix>.frames.> and <prefix>.ended
}

// EventBusConfig tunes delta fan-out
type EventBusConfig struct {
	QueueSize     int    `json:"queue_size"`     // Per-subscriber delta queue
	SubjectPrefix string `json:"subject_prefix"` // Deltas are mirrored to <prefix>.delta.<source>
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Default returns the configuration used before any layer is applied.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			ID:          "self",
			Environment: "dev",
		},
		HTTP: HTTPConfig{
			Addr:              ":3000",
			MaxRequestSize:    1 << 20,
			WriteTimeout:      10 * time.Second,
			PingInterval:      30 * time.Second,
			StreamQueueFrames: 1024,
		},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Alerts: AlertsConfig{
			SilenceDuration: 30 * time.Second,
			EscalateAfter:   5 * time.Minute,
		},
		Streams: StreamsConfig{
			BufferedFrames:      100,
			MaxBufferedBytes:    256 * 1024,
			MaxConsecutiveDrops: 30,
			LogEvery:            500,
			SubjectPrefix:       "marinestreams.streams",
		},
		EventBus: EventBusConfig{
			QueueSize:     64,
			SubjectPrefix: "marinestreams",
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Platform.ID == "" {
		return invalid("platform.id is required")
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr is required")
	}
	if c.HTTP.MaxRequestSize <= 0 {
		return invalid("http.max_request_size must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 || c.HTTP.PingInterval <= 0 {
		return invalid("http.write_timeout and http.ping_interval must be positive")
	}
	if c.HTTP.StreamQueueFrames <= 0 {
		return invalid("http.stream_queue_frames must be positive")
	}
	if err := c.HTTP.TLS.Validate(); err != nil {
		return invalid("http.tls: " + err.Error())
	}

	if c.Security.Enabled && c.Security.JWTSecret == "" {
		return invalid("security.jwt_secret is required when security is enabled")
	}

	if c.Alerts.SilenceDuration <= 0 {
		return invalid("alerts.silence_duration must be positive")
	}
	if c.Alerts.EscalateAfter < 0 {
		return invalid("alerts.escalation_after cannot be negative")
	}

	if c.Streams.BufferedFrames <= 0 {
		return invalid("streams.buffered_frames must be positive")
	}
	if c.Streams.MaxBufferedBytes <= 0 || c.Streams.MaxConsecutiveDrops <= 0 {
		return invalid("streams slow consumer limits must be positive")
	}
	if c.EventBus.QueueSize <= 0 {
		return invalid("eventbus.queue_size must be positive")
	}

	if c.NATS.Enabled() {
		if err := c.NATS.TLS.Validate(); err != nil {
			return invalid("nats.tls: " + err.Error())
		}
		for _, prefix := range []string{c.Streams.SubjectPrefix, c.EventBus.SubjectPrefix} {
			if !isValidNATSSubject(prefix) {
				return invalid(fmt.Sprintf("subject prefix %q is not valid for NATS subjects", prefix))
			}
		}
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg)
}

// isValidNATSSubject checks a dotted subject prefix: alphanumeric tokens,
// dashes and underscores, no wildcards and no empty tokens.
func isValidNATSSubject(s string) bool {
	if s == "" {
		return false
	}
	for _, token := range strings.Split(s, ".") {
		if token == "" {
			return false
		}
		for _, r := range token {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
				return false
			}
		}
	}
	return true
}

// durationFields lists the keys, per section, that accept "30s" style strings.
var durationFields = map[string][]string{
	"http":   {"write_timeout", "ping_interval"},
	"nats":   {"reconnect_wait"},
	"alerts": {"silence_duration", "escalation_after"},
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  EnvPrefix,
		lookupEnv:  os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges all layers over the defaults, applies environment overrides
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "load "+path)
		}
		merged, err := l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "merge "+path)
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "apply environment")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "validate")
		}
	}
	return cfg, nil
}

// loadRaw reads a JSON or YAML file as a generic map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, format, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) error {
	for section, keys := range durationFields {
		m, ok := data[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range keys {
			s, ok := m[key].(string)
			if !ok {
				continue
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", section, key, err)
			}
			m[key] = d.Nanoseconds()
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) error {
		key := l.envPrefix + "_" + name
		val, ok := l.lookupEnv(key)
		if !ok || val == "" {
			return nil
		}
		if err := validateEnvVar(key, val); err != nil {
			return err
		}
		*dst = val
		return nil
	}

	var urls, secEnabled string
	overrides := []struct {
		name string
		dst  *string
	}{
		{"PLATFORM_ID", &cfg.Platform.ID},
		{"PLATFORM_NAME", &cfg.Platform.Name},
		{"HTTP_ADDR", &cfg.HTTP.Addr},
		{"NATS_URLS", &urls},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"SECURITY_ENABLED", &secEnabled},
		{"JWT_SECRET", &cfg.Security.JWTSecret},
	}
	for _, o := range overrides {
		if err := str(o.name, o.dst); err != nil {
			return err
		}
	}

	if urls != "" {
		cfg.NATS.URLs = strings.Split(urls, ",")
	}
	if secEnabled != "" {
		enabled, err := strconv.ParseBool(secEnabled)
		if err != nil {
			return fmt.Errorf("%s_SECURITY_ENABLED: %w", l.envPrefix, err)
		}
		cfg.Security.Enabled = enabled
	}
	return nil
}

// String returns a JSON representation of the config with secrets redacted
func (c *Config) String() string {
	redacted := c.Clone()
	for _, s := range []*string{&redacted.NATS.Password, &redacted.NATS.Token, &redacted.Security.JWTSecret} {
		if *s != "" {
			*s = "***"
		}
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}
