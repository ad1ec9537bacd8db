// Package config loads CLI settings from a YAML file, PIPEMIRROR_* environment
// variables and flags, in increasing order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PIPEMIRROR_SERVER_URL.
const EnvPrefix = "PIPEMIRROR_"

// Snapshot backends.
const (
	SnapshotNone  = "none"
	SnapshotFile  = "file"
	SnapshotRedis = "redis"
)

// Config is the full CLI configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Push     PushConfig     `mapstructure:"push" yaml:"push"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Snapshot SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Commit   CommitConfig   `mapstructure:"commit" yaml:"commit"`
}

type ServerConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	EventsPath string        `mapstructure:"events_path" yaml:"events_path"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type PushConfig struct {
	MinBackoff time.Duration `mapstructure:"min_backoff" yaml:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// SnapshotConfig selects where the mirror is saved between runs.
// EncryptionKey and FallbackKeys are base64 encoded 32-byte AES keys; Redact
// lists regular expressions over variable names whose values are masked.
type SnapshotConfig struct {
	Backend       string      `mapstructure:"backend" yaml:"backend"`
	Path          string      `mapstructure:"path" yaml:"path"`
	Redis         RedisConfig `mapstructure:"redis" yaml:"redis"`
	EncryptionKey string      `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string    `mapstructure:"fallback_keys" yaml:"fallback_keys"`
	Redact        []string    `mapstructure:"redact" yaml:"redact"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type CommitConfig struct {
	Optimistic bool `mapstructure:"optimistic" yaml:"optimistic"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:        "http://localhost:8000/api",
			EventsPath: "/events_stream",
			Timeout:    10 * time.Second,
		},
		Push: PushConfig{
			MinBackoff: 500 * time.Millisecond,
			MaxBackoff: 30 * time.Second,
		},
		Log: LogConfig{Level: "warn"},
		Snapshot: SnapshotConfig{
			Backend: SnapshotNone,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "pipemirror:",
			},
		},
	}
}

// Load reads path (optional; a missing file is not an error) and applies
// environment overrides from environ, which is usually os.Environ().
func Load(path string, environ []string) (Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			if raw == nil {
				raw = map[string]any{}
			}
		}
	}

	applyEnv(raw, environ)

	cfg := Default()
	if err := decode(raw, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// nestedSections are reached through a third name segment, as in
// PIPEMIRROR_SNAPSHOT_REDIS_ADDR.
var nestedSections = map[string]bool{
	"snapshot.redis": true,
}

// applyEnv maps PIPEMIRROR_SECTION_KEY=value onto raw[section][key].
func applyEnv(raw map[string]any, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_")
		if !ok || section == "" || key == "" {
			continue
		}
		target := subMap(raw, section)
		if sub, rest, ok := strings.Cut(key, "_"); ok && nestedSections[section+"."+sub] {
			target = subMap(target, sub)
			key = rest
		}
		target[key] = value
	}
}

func subMap(m map[string]any, key string) map[string]any {
	sub, _ := m[key].(map[string]any)
	if sub == nil {
		sub = map[string]any{}
		m[key] = sub
	}
	return sub
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required")
	}
	if c.Push.MinBackoff <= 0 || c.Push.MaxBackoff < c.Push.MinBackoff {
		return fmt.Errorf("push backoff must satisfy 0 < min_backoff <= max_backoff (got %s, %s)",
			c.Push.MinBackoff, c.Push.MaxBackoff)
	}
	switch c.Snapshot.Backend {
	case SnapshotNone, SnapshotFile:
	case SnapshotRedis:
		if c.Snapshot.Redis.Addr == "" {
			return errors.New("snapshot.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}
	if c.Snapshot.EncryptionKey == "" && len(c.Snapshot.FallbackKeys) > 0 {
		return errors.New("snapshot.fallback_keys requires snapshot.encryption_key")
	}
	if _, _, err := c.Snapshot.Keys(); err != nil {
		return err
	}
	return nil
}

// Keys decodes the snapshot encryption keys. active is nil when encryption
// is off.
func (s SnapshotConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey("snapshot.encryption_key", s.EncryptionKey); err != nil {
		return nil, nil, err
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("snapshot.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(field, value string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", field, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", field, len(key))
	}
	return key, nil
}
