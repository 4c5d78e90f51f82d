// Package config loads tamscore's Settings from the environment (with an
// optional .env file) and an optional mounted JSON/YAML overlay, per spec §6.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings enumerates every recognized configuration option. No component
// reads the environment directly; Settings is constructed once at process
// start and passed explicitly to every constructor, per spec §9's design
// note on replacing global singleton settings.
type Settings struct {
	// Columnar engine (C5). VastEndpoints is parsed separately below since
	// envdecode does not decode comma-separated slices natively.
	VastEndpoints  []string
	VastAccessKey  string   `env:"VAST_ACCESS_KEY"`
	VastSecretKey  string   `env:"VAST_SECRET_KEY"`
	VastBucket     string   `env:"VAST_BUCKET,default=tams"`
	VastSchema     string   `env:"VAST_SCHEMA,default=tams"`
	VastTimeoutSec int      `env:"VAST_TIMEOUT,default=30"`

	// Object store (C13).
	S3EndpointURL        string `env:"S3_ENDPOINT_URL,default=localhost:9000"`
	S3AccessKeyID        string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3BucketName         string `env:"S3_BUCKET_NAME,default=tams-segments"`
	S3UseSSL             bool   `env:"S3_USE_SSL,default=false"`
	S3PresignedURLTimeout time.Duration `env:"S3_PRESIGNED_URL_TIMEOUT,default=1h"`

	// Batch tuning (C8).
	DefaultBatchSize    int `env:"DEFAULT_BATCH_SIZE,default=100"`
	DefaultMaxWorkers   int `env:"DEFAULT_MAX_WORKERS,default=4"`
	ParallelThreshold   int `env:"PARALLEL_THRESHOLD,default=10"`
	DefaultMaxRetries   int `env:"DEFAULT_MAX_RETRIES,default=3"`

	// Cache / performance tuning (C4, C9, C12).
	CacheTTL              time.Duration `env:"CACHE_TTL,default=30m"`
	SlowQueryThresholdSec float64       `env:"SLOW_QUERY_THRESHOLD_SECONDS,default=5"`
	MetricsHistoryCap     int           `env:"METRICS_HISTORY_CAP,default=1000"`
	RoundRobinInterval    time.Duration `env:"ROUND_ROBIN_INTERVAL,default=1s"`
	EndpointHealthCheckInterval time.Duration `env:"ENDPOINT_HEALTH_CHECK_INTERVAL,default=5m"`
	AnalyticsStickyInterval     time.Duration `env:"ANALYTICS_STICKY_INTERVAL,default=5s"`

	// Logging (ambient).
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
	LogOutput string `env:"LOG_OUTPUT,default=stdout"`

	// Optional mounted config overlay path (JSON or YAML); see §6.
	ConfigOverlayPath string `env:"CONFIG_OVERLAY_PATH"`
}

// Load builds Settings from the environment, optionally seeding it first
// from a .env file (ignored if absent, matching the teacher's entrypoints),
// then applying the mounted overlay file when ConfigOverlayPath resolves to
// an existing file.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if err := envdecode.StrictDecode(&s); err != nil {
		return nil, fmt.Errorf("decode environment settings: %w", err)
	}

	s.VastEndpoints = SplitAndTrimCSV(os.Getenv("VAST_ENDPOINTS"))
	if len(s.VastEndpoints) == 0 {
		s.VastEndpoints = []string{"localhost:9090"}
	}

	if s.ConfigOverlayPath != "" {
		if err := applyOverlay(&s, s.ConfigOverlayPath); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

// applyOverlay decodes the file at path (JSON or YAML by extension) into a
// generic map and overwrites recognized Settings fields. Unknown keys are
// ignored without being logged, per spec §9's design note on dynamic
// keyword-argument overrides.
func applyOverlay(s *Settings, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config overlay %s: %w", path, err)
	}

	var raw map[string]any
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse yaml config overlay: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse json config overlay: %w", err)
		}
	}

	applyOverlayFields(s, raw)
	return nil
}

func applyOverlayFields(s *Settings, raw map[string]any) {
	if v, ok := raw["vast_bucket"].(string); ok {
		s.VastBucket = v
	}
	if v, ok := raw["vast_schema"].(string); ok {
		s.VastSchema = v
	}
	if v, ok := raw["s3_bucket_name"].(string); ok {
		s.S3BucketName = v
	}
	if v, ok := raw["default_batch_size"]; ok {
		if n, ok := toInt(v); ok {
			s.DefaultBatchSize = n
		}
	}
	if v, ok := raw["default_max_workers"]; ok {
		if n, ok := toInt(v); ok {
			s.DefaultMaxWorkers = n
		}
	}
	if v, ok := raw["parallel_threshold"]; ok {
		if n, ok := toInt(v); ok {
			s.ParallelThreshold = n
		}
	}
	if v, ok := raw["default_max_retries"]; ok {
		if n, ok := toInt(v); ok {
			s.DefaultMaxRetries = n
		}
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	default:
		return 0, false
	}
}

// ParseByteSize parses human-readable byte sizes ("64KB", "10MB"). It has
// no caller in this module. Grounded on the teacher's
// infrastructure/config/loader.go ParseByteSize.
func ParseByteSize(s string, fallback int64) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return fallback
	}
	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fallback
	}
	return n * multiplier
}

// SplitAndTrimCSV splits a comma-separated environment value into trimmed,
// non-empty parts. Grounded on the teacher's loader.go helper of the same
// shape.
func SplitAndTrimCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
