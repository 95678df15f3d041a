package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// InvalidationCfg gates the Kafka consumer; broker, topic, and group
// settings live with the consumer's own FromEnv.
type InvalidationCfg struct {
	Enabled bool
}

type Config struct {
	Addr            string
	LogLevel        string
	ProviderURL     string
	CredentialsFile string
	CacheDir        string
	SkipCache       bool
	ThumbSize       int
	MetadataBackend string
	RedisAddr       string
	StatsScale      float64
	StatsMaxPixels  int64
	HotHalfLife     time.Duration
	H3Res           int
	ArtifactLRU     int
	Invalidation    InvalidationCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 5)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:            getenv("ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		ProviderURL:     getenv("PROVIDER_URL", "https://earthengine.googleapis.com"),
		CredentialsFile: getenv("CREDENTIALS_FILE", "credentials.json"),
		CacheDir:        getenv("CACHE_DIR", "cache"),
		SkipCache:       getbool("SKIP_CACHE", false),
		ThumbSize:       getint("THUMB_SIZE", 512),
		MetadataBackend: getenv("METADATA_BACKEND", "file"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		StatsScale:      getfloat("STATS_SCALE", 1000),
		StatsMaxPixels:  getint64("STATS_MAX_PIXELS", 1e9),
		HotHalfLife:     getduration("HOT_HALF_LIFE", time.Minute),
		H3Res:           res,
		ArtifactLRU:     getint("ARTIFACT_LRU_ENTRIES", 128),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
