// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads sessiongate configuration.
//
// Sources are layered, later ones winning:
//
//  1. built-in defaults
//  2. a YAML file (validated against the generated JSON Schema)
//  3. a .env file
//  4. the process environment
//  5. command-line flags that were explicitly set
package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/sessiongate/internal/gate"
	"github.com/holomush/sessiongate/internal/logging"
	"github.com/holomush/sessiongate/internal/pathmatch"
	"github.com/holomush/sessiongate/internal/xdg"
)

// Config is the complete process configuration.
type Config struct {
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty" jsonschema:"description=Authentication gate settings"`
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty" jsonschema:"description=HTTP API listener"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
}

// AuthConfig selects the auth strategy and its session settings.
type AuthConfig struct {
	Type            string   `koanf:"type" json:"type,omitempty" jsonschema:"description=Strategy name; empty disables the gate"`
	SessionName     string   `koanf:"session_name" json:"session_name,omitempty" jsonschema:"description=Session cookie name"`
	SessionDuration int      `koanf:"session_duration" json:"session_duration,omitempty" jsonschema:"minimum=0,description=Session lifetime in seconds; 0 never expires"`
	PathMatching    string   `koanf:"path_matching" json:"path_matching,omitempty" jsonschema:"enum=strict,enum=permissive"`
	ExcludedPaths   []string `koanf:"excluded_paths" json:"excluded_paths,omitempty" jsonschema:"description=Paths served without authentication; a trailing * matches a prefix"`
	Hasher          string   `koanf:"hasher" json:"hasher,omitempty" jsonschema:"enum=argon2id,enum=bcrypt"`
	BcryptCost      int      `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" jsonschema:"minimum=0,maximum=31"`
	SweepInterval   int      `koanf:"sweep_interval" json:"sweep_interval,omitempty" jsonschema:"minimum=0,description=Seconds between expired session sweeps; 0 disables"`
}

// HTTPConfig is the API listener.
type HTTPConfig struct {
	Host string `koanf:"host" json:"host,omitempty"`
	Port int    `koanf:"port" json:"port,omitempty" jsonschema:"minimum=0,maximum=65535"`
}

// DatabaseConfig points at PostgreSQL. An empty URL keeps users and sessions
// in memory.
type DatabaseConfig struct {
	URL string `koanf:"url" json:"url,omitempty"`
}

// MetricsConfig is the observability listener. An empty address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level        string   `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format       string   `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	RedactFields []string `koanf:"redact_fields" json:"redact_fields,omitempty"`
}

// DefaultExcludedPaths are served without authentication unless overridden.
var DefaultExcludedPaths = []string{
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"auth.type":             gate.TypeNone,
		"auth.session_name":     gate.DefaultCookieName,
		"auth.session_duration": 0,
		"auth.path_matching":    pathmatch.Strict.String(),
		"auth.excluded_paths":   append([]string(nil), DefaultExcludedPaths...),
		"auth.hasher":           "argon2id",
		"auth.bcrypt_cost":      0,
		"auth.sweep_interval":   60,
		"http.host":             "0.0.0.0",
		"http.port":             5000,
		"database.url":          "",
		"metrics.addr":          "",
		"log.level":             "info",
		"log.format":            "json",
		"log.redact_fields":     append([]string(nil), logging.PIIFields...),
	}
}

// envKeys maps environment variable names to config keys.
var envKeys = map[string]string{
	"AUTH_TYPE":           "auth.type",
	"SESSION_NAME":        "auth.session_name",
	"SESSION_DURATION":    "auth.session_duration",
	"AUTH_PATH_MATCHING":  "auth.path_matching",
	"AUTH_EXCLUDED_PATHS": "auth.excluded_paths",
	"AUTH_HASHER":         "auth.hasher",
	"DATABASE_URL":        "database.url",
	"API_HOST":            "http.host",
	"API_PORT":            "http.port",
	"METRICS_ADDR":        "metrics.addr",
	"LOG_LEVEL":           "log.level",
	"LOG_FORMAT":          "log.format",
}

// flagKeys maps flag names registered by RegisterFlags to config keys.
var flagKeys = map[string]string{
	"auth-type":        "auth.type",
	"session-name":     "auth.session_name",
	"session-duration": "auth.session_duration",
	"path-matching":    "auth.path_matching",
	"excluded-paths":   "auth.excluded_paths",
	"hasher":           "auth.hasher",
	"database-url":     "database.url",
	"host":             "http.host",
	"port":             "http.port",
	"metrics-addr":     "metrics.addr",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// Flag names that select files rather than values.
const (
	FlagConfig  = "config"
	FlagEnvFile = "env-file"
)

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "path to config file (default $XDG_CONFIG_HOME/sessiongate/config.yaml)")
	fs.String(FlagEnvFile, ".env", "path to a dotenv file")
	fs.String("auth-type", "", "auth strategy: "+strings.Join(gate.Types[1:], ", "))
	fs.String("session-name", "", "session cookie name")
	fs.Int("session-duration", 0, "session lifetime in seconds")
	fs.String("path-matching", "", "path exclusion discipline (strict, permissive)")
	fs.StringSlice("excluded-paths", nil, "paths served without authentication")
	fs.String("hasher", "", "password hasher (argon2id, bcrypt)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("host", "", "API listen host")
	fs.Int("port", 0, "API listen port")
	fs.String("metrics-addr", "", "metrics listen address")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (json, text)")
}

// Options locate the sources Load reads.
type Options struct {
	// File is the YAML config path. When empty the XDG default is used if it
	// exists.
	File string
	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
	// Flags, when set, contributes every flag that was explicitly changed.
	Flags *pflag.FlagSet
}

// Load builds a Config from every source and validates it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if opts.Flags != nil {
		if opts.File == "" {
			opts.File, _ = opts.Flags.GetString(FlagConfig)
		}
		if opts.EnvFile == "" {
			opts.EnvFile, _ = opts.Flags.GetString(FlagEnvFile)
		}
	}

	if err := loadFile(k, opts.File); err != nil {
		return nil, err
	}

	if opts.EnvFile != "" {
		vars, err := godotenv.Read(opts.EnvFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "dotenv").
				With("path", opts.EnvFile).
				Wrap(err)
		default:
			if err := k.Load(confmap.Provider(envMap(vars), "."), nil); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "dotenv").Wrap(err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagValue(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		p, err := xdg.ConfigFile()
		if err != nil {
			return nil
		}
		path = p
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: config path comes from the operator
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
	}
	if err := ValidateSchema(data); err != nil {
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", path).Wrap(err)
	}
	return nil
}

// envValue maps an environment variable to a config key. Unknown variables
// are skipped. A SESSION_DURATION that is not an integer means 0.
func envValue(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok {
		return "", nil
	}
	switch key {
	case "auth.session_duration":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return key, 0
		}
		return key, n
	case "auth.excluded_paths":
		return key, splitList(value)
	default:
		return key, value
	}
}

func envMap(vars map[string]string) map[string]any {
	out := make(map[string]any, len(vars))
	for name, value := range vars {
		if key, v := envValue(name, value); key != "" {
			out[key] = v
		}
	}
	return out
}

func flagValue(fs *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SessionTTL returns the session lifetime.
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionDuration) * time.Second
}

// SweepEvery returns the sweep interval.
func (c AuthConfig) SweepEvery() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// GateConfig converts the auth section into a gate.Config.
func (c AuthConfig) GateConfig() (gate.Config, error) {
	discipline, err := pathmatch.ParseDiscipline(c.PathMatching)
	if err != nil {
		return gate.Config{}, err
	}
	return gate.Config{
		Type:            c.Type,
		CookieName:      c.SessionName,
		SessionDuration: c.SessionTTL(),
		PathMatching:    discipline,
		ExcludedPaths:   append([]string(nil), c.ExcludedPaths...),
	}, nil
}

// Addr returns the host:port the API listens on.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
