package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/roombooking/internal/domain"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "BOOKING_CONFIG"

// Mirror backends.
const (
	MirrorFile   = "file"
	MirrorSQLite = "sqlite"
	MirrorRedis  = "redis"
)

// Config captures the settings of the booking daemon.
type Config struct {
	HTTPPort           int
	BackendURL         string
	BackendToken       string
	RequestTimeout     time.Duration
	RateLimit          float64
	RateBurst          int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
	MirrorBackend      string
	MirrorPath         string
	MirrorDSN          string
	RedisURL           string
	// RefreshCron is a five-field cron spec. Empty disables periodic refresh.
	RefreshCron  string
	RefreshKinds []domain.Kind
	Timezone     *time.Location
	LogLevel     string
	LogFormat    string
	// Endpoints overrides the collection path of a kind.
	Endpoints map[domain.Kind]string
}

// fileConfig mirrors the YAML file. Scalars are kept as text so that file and
// environment values go through the same parsing and validation.
type fileConfig struct {
	HTTPPort           string            `yaml:"http_port"`
	BackendURL         string            `yaml:"backend_url"`
	BackendToken       string            `yaml:"backend_token"`
	RequestTimeout     string            `yaml:"request_timeout"`
	RateLimit          string            `yaml:"rate_limit"`
	RateBurst          string            `yaml:"rate_burst"`
	BreakerMaxFailures string            `yaml:"breaker_max_failures"`
	BreakerTimeout     string            `yaml:"breaker_timeout"`
	MirrorBackend      string            `yaml:"mirror_backend"`
	MirrorPath         string            `yaml:"mirror_path"`
	MirrorDSN          string            `yaml:"mirror_dsn"`
	RedisURL           string            `yaml:"redis_url"`
	RefreshCron        *string           `yaml:"refresh_cron"`
	RefreshKinds       []string          `yaml:"refresh_kinds"`
	Timezone           string            `yaml:"timezone"`
	LogLevel           string            `yaml:"log_level"`
	LogFormat          string            `yaml:"log_format"`
	Endpoints          map[string]string `yaml:"endpoints"`
}

// Load builds the configuration from defaults, the optional YAML file named by
// BOOKING_CONFIG and BOOKING_* environment variables, in that order of
// precedence. Every missing or invalid key is reported in one error.
func Load() (Config, error) {
	values := map[string]string{
		"http_port":            "8080",
		"request_timeout":      "10s",
		"rate_limit":           "10",
		"rate_burst":           "20",
		"breaker_max_failures": "5",
		"breaker_timeout":      "30s",
		"mirror_backend":       MirrorFile,
		"mirror_path":          "rooms-mirror.json",
		"mirror_dsn":           "file:rooms-mirror.db",
		"refresh_cron":         "*/5 * * * *",
		"timezone":             "UTC",
		"log_level":            "info",
		"log_format":           "json",
	}
	var kinds []string
	endpoints := make(map[string]string)

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file.apply(values)
		if file.RefreshKinds != nil {
			kinds = file.RefreshKinds
		}
		for kind, endpoint := range file.Endpoints {
			endpoints[kind] = endpoint
		}
	}

	for key := range values {
		if v, ok := lookupEnv(key); ok {
			values[key] = v
		}
	}
	for _, key := range []string{"backend_url", "backend_token", "redis_url"} {
		if v, ok := lookupEnv(key); ok {
			values[key] = v
		}
	}
	if v, ok := lookupEnv("refresh_kinds"); ok {
		kinds = splitList(v)
	}
	for _, kind := range domain.Kinds() {
		if v, ok := lookupEnv("endpoint_" + string(kind)); ok {
			endpoints[string(kind)] = v
		}
	}

	return parse(values, kinds, endpoints)
}

func readFile(path string) (fileConfig, error) {
	var file fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return file, fmt.Errorf("config file %s does not exist", path)
		}
		return file, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return file, nil
}

func (f fileConfig) apply(values map[string]string) {
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			values[key] = value
		}
	}
	set("http_port", f.HTTPPort)
	set("backend_url", f.BackendURL)
	set("backend_token", f.BackendToken)
	set("request_timeout", f.RequestTimeout)
	set("rate_limit", f.RateLimit)
	set("rate_burst", f.RateBurst)
	set("breaker_max_failures", f.BreakerMaxFailures)
	set("breaker_timeout", f.BreakerTimeout)
	set("mirror_backend", f.MirrorBackend)
	set("mirror_path", f.MirrorPath)
	set("mirror_dsn", f.MirrorDSN)
	set("redis_url", f.RedisURL)
	set("timezone", f.Timezone)
	set("log_level", f.LogLevel)
	set("log_format", f.LogFormat)
	// An explicit empty refresh_cron disables the refresher.
	if f.RefreshCron != nil {
		values["refresh_cron"] = *f.RefreshCron
	}
}

// lookupEnv reads BOOKING_<KEY>. Set-but-blank variables count as set only
// for refresh_cron, which uses blank to mean disabled.
func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv("BOOKING_" + strings.ToUpper(key))
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" && key != "refresh_cron" {
		return "", false
	}
	return v, true
}

func parse(values map[string]string, kinds []string, endpoints map[string]string) (Config, error) {
	cfg := Config{
		BackendURL:   strings.TrimSpace(values["backend_url"]),
		BackendToken: strings.TrimSpace(values["backend_token"]),
		MirrorPath:   strings.TrimSpace(values["mirror_path"]),
		MirrorDSN:    strings.TrimSpace(values["mirror_dsn"]),
		RedisURL:     strings.TrimSpace(values["redis_url"]),
		RefreshCron:  strings.TrimSpace(values["refresh_cron"]),
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if cfg.BackendURL == "" {
		missing = append(missing, "backend_url")
	} else if !strings.HasPrefix(cfg.BackendURL, "http://") && !strings.HasPrefix(cfg.BackendURL, "https://") {
		invalid = append(invalid, "backend_url")
	}

	if port, err := strconv.Atoi(strings.TrimSpace(values["http_port"])); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, "http_port")
	} else {
		cfg.HTTPPort = port
	}

	if d, err := time.ParseDuration(strings.TrimSpace(values["request_timeout"])); err != nil || d <= 0 {
		invalid = append(invalid, "request_timeout")
	} else {
		cfg.RequestTimeout = d
	}

	if r, err := strconv.ParseFloat(strings.TrimSpace(values["rate_limit"]), 64); err != nil || r < 0 {
		invalid = append(invalid, "rate_limit")
	} else {
		cfg.RateLimit = r
	}

	if b, err := strconv.Atoi(strings.TrimSpace(values["rate_burst"])); err != nil || b < 1 {
		invalid = append(invalid, "rate_burst")
	} else {
		cfg.RateBurst = b
	}

	if n, err := strconv.ParseUint(strings.TrimSpace(values["breaker_max_failures"]), 10, 32); err != nil || n == 0 {
		invalid = append(invalid, "breaker_max_failures")
	} else {
		cfg.BreakerMaxFailures = uint32(n)
	}

	if d, err := time.ParseDuration(strings.TrimSpace(values["breaker_timeout"])); err != nil || d <= 0 {
		invalid = append(invalid, "breaker_timeout")
	} else {
		cfg.BreakerTimeout = d
	}

	switch backend := strings.ToLower(strings.TrimSpace(values["mirror_backend"])); backend {
	case MirrorFile:
		cfg.MirrorBackend = backend
		if cfg.MirrorPath == "" {
			missing = append(missing, "mirror_path")
		}
	case MirrorSQLite:
		cfg.MirrorBackend = backend
		if cfg.MirrorDSN == "" {
			missing = append(missing, "mirror_dsn")
		}
	case MirrorRedis:
		cfg.MirrorBackend = backend
		if cfg.RedisURL == "" {
			missing = append(missing, "redis_url")
		}
	default:
		invalid = append(invalid, "mirror_backend")
	}

	if cfg.RefreshCron != "" && len(strings.Fields(cfg.RefreshCron)) != 5 && !strings.HasPrefix(cfg.RefreshCron, "@") {
		invalid = append(invalid, "refresh_cron")
	}

	if len(kinds) == 0 {
		cfg.RefreshKinds = domain.Kinds()
	} else {
		for _, raw := range kinds {
			kind, ok := domain.ParseKind(raw)
			if !ok {
				invalid = append(invalid, "refresh_kinds")
				break
			}
			cfg.RefreshKinds = appendKind(cfg.RefreshKinds, kind)
		}
	}

	if loc, err := time.LoadLocation(strings.TrimSpace(values["timezone"])); err != nil {
		invalid = append(invalid, "timezone")
	} else {
		cfg.Timezone = loc
	}

	switch level := strings.ToLower(strings.TrimSpace(values["log_level"])); level {
	case "debug", "info", "warn", "error":
		cfg.LogLevel = level
	default:
		invalid = append(invalid, "log_level")
	}

	switch format := strings.ToLower(strings.TrimSpace(values["log_format"])); format {
	case "json", "text":
		cfg.LogFormat = format
	default:
		invalid = append(invalid, "log_format")
	}

	if len(endpoints) > 0 {
		cfg.Endpoints = make(map[domain.Kind]string, len(endpoints))
		for raw, path := range endpoints {
			kind, ok := domain.ParseKind(raw)
			path = strings.TrimSpace(path)
			if !ok || !strings.HasPrefix(path, "/") {
				invalid = append(invalid, "endpoints."+raw)
				continue
			}
			cfg.Endpoints[kind] = path
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendKind(kinds []domain.Kind, kind domain.Kind) []domain.Kind {
	for _, existing := range kinds {
		if existing == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}
