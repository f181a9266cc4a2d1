// Package config loads the leadflow binary configuration: defaults, overlaid by
// an optional YAML file, overlaid by LEADFLOW_* environment variables.
//
// Environment keys map onto the YAML paths with "__" as the nesting separator:
// LEADFLOW_HTTP__ADDR sets http.addr and LEADFLOW_CONTACT_URL sets contact_url.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/leadflow/internal/telemetry"
)

// EnvPrefix is the prefix of the environment overrides.
const EnvPrefix = "LEADFLOW_"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Lead sink kinds.
const (
	LeadsNone     = "none"
	LeadsMemory   = "memory"
	LeadsSQLite   = "sqlite"
	LeadsPostgres = "postgres"
	LeadsWebhook  = "webhook"
)

type Config struct {
	Catalog    string `mapstructure:"catalog" yaml:"catalog"`
	Source     string `mapstructure:"source" yaml:"source"`
	ContactURL string `mapstructure:"contact_url" yaml:"contact_url"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format"` // text or json

	HTTP      HTTPConfig       `mapstructure:"http" yaml:"http"`
	Session   SessionConfig    `mapstructure:"session" yaml:"session"`
	Store     StoreConfig      `mapstructure:"store" yaml:"store"`
	Leads     LeadsConfig      `mapstructure:"leads" yaml:"leads"`
	Report    WebhookConfig    `mapstructure:"report" yaml:"report"`
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type SessionConfig struct {
	RestoreWindow time.Duration `mapstructure:"restore_window" yaml:"restore_window"`
	LockTTL       time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout" yaml:"submit_timeout"`
}

// StoreConfig selects the snapshot store.
type StoreConfig struct {
	Kind     string `mapstructure:"kind" yaml:"kind"`
	Dir      string `mapstructure:"dir" yaml:"dir"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`

	// EncryptionKey is a base64 AES-256 key. FallbackKeys decrypt snapshots
	// written before a rotation.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
}

// LeadsConfig selects where completed leads are submitted.
type LeadsConfig struct {
	Kind        string        `mapstructure:"kind" yaml:"kind"`
	SQLitePath  string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresURL string        `mapstructure:"postgres_url" yaml:"postgres_url"`
	Migrate     bool          `mapstructure:"migrate" yaml:"migrate"`
	Webhook     WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

type WebhookConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Secret string `mapstructure:"secret" yaml:"secret"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Source:     "",
		ContactURL: "/contato",
		LogLevel:   "info",
		LogFormat:  "text",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			RestoreWindow: 24 * time.Hour,
			LockTTL:       30 * time.Second,
			SubmitTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Kind: StoreFile,
			Dir:  ".leadflow/sessions",
		},
		Leads: LeadsConfig{
			Kind:       LeadsSQLite,
			SQLitePath: ".leadflow/leads.db",
			Migrate:    true,
		},
	}
}

// Load reads path (optional) and the environment over the defaults.
// environ is usually os.Environ().
func Load(path string, environ []string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := decode(raw, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if env := envTree(environ); len(env) > 0 {
		if err := decode(env, cfg); err != nil {
			return nil, fmt.Errorf("environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(input map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// envTree turns LEADFLOW_A__B=v into {"a": {"b": "v"}}.
func envTree(environ []string) map[string]any {
	tree := make(map[string]any)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__")

		node := tree
		for _, part := range path[:len(path)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[path[len(path)-1]] = value
	}
	return tree
}

// Validate checks the cross-field rules the decoder cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Kind {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q", c.Store.Kind))
	}

	switch c.Leads.Kind {
	case LeadsNone, LeadsMemory:
	case LeadsSQLite:
		if c.Leads.SQLitePath == "" {
			errs = append(errs, errors.New("leads.sqlite_path is required for the sqlite sink"))
		}
	case LeadsPostgres:
		if c.Leads.PostgresURL == "" {
			errs = append(errs, errors.New("leads.postgres_url is required for the postgres sink"))
		}
	case LeadsWebhook:
		if c.Leads.Webhook.URL == "" {
			errs = append(errs, errors.New("leads.webhook.url is required for the webhook sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown leads.kind %q", c.Leads.Kind))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.Session.RestoreWindow <= 0 {
		errs = append(errs, errors.New("session.restore_window must be positive"))
	}
	if _, _, err := c.Store.Keys(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Keys decodes the snapshot encryption keys. A nil active key disables encryption.
func (s StoreConfig) Keys() (active []byte, fallbacks [][]byte, err error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("store.fallback_keys requires store.encryption_key")
		}
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
