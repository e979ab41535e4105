package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	HTTPAddr           string
	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
	ResolveTimeout     time.Duration
	ProviderTimeout    time.Duration
	UserAgent          string
	AudioProviders     []string
	SearchQuery        string
	FilterResults      bool
	MinScore           float64
	SoundCloudEndpoint string
	SoundCloudClientID string
	YTMusicEndpoint    string
	YouTubeEndpoint    string
	ProviderRPS        float64
	RetryAttempts      int
	RetryDelay         time.Duration
	RedisURL           string
	CacheTTL           time.Duration
	CacheDisabled      bool
	MongoURI           string
	MongoDatabase      string
	BatchWorkers       int
	LogLevel           string
	LogFormat          string
	LogFile            string
	LogFileMaxSizeMB   int
	LogFileMaxFiles    int
	LogFileMaxAgeDays  int
	OTELEndpoint       string
	OTELSampleRatio    float64
}

// LoadConfig reads the environment and, when CONFIG_FILE is set, overlays the
// TOML file on top of it.
func LoadConfig() (Config, error) {
	cfg := loadEnv()
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		return cfg, nil
	}
	if err := cfg.ApplyFile(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadEnv() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8095"),
		HTTPRateLimitRPS:   getEnvFloat("HTTP_RATE_LIMIT_RPS", 20),
		HTTPRateLimitBurst: getEnvInt("HTTP_RATE_LIMIT_BURST", 40),
		ResolveTimeout:     time.Duration(getEnvInt("RESOLVE_TIMEOUT_SECONDS", 20)) * time.Second,
		ProviderTimeout:    time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 10)) * time.Second,
		UserAgent:          getEnv("USER_AGENT", "trackmatch/1.0"),
		AudioProviders:     splitList(getEnv("AUDIO_PROVIDERS", "ytmusic,youtube,soundcloud")),
		SearchQuery:        strings.TrimSpace(os.Getenv("SEARCH_QUERY")),
		FilterResults:      getEnvBool("FILTER_RESULTS", true),
		MinScore:           getEnvFloat("MIN_SCORE", 80),
		SoundCloudEndpoint: getEnv("SOUNDCLOUD_ENDPOINT", "https://api-v2.soundcloud.com"),
		SoundCloudClientID: strings.TrimSpace(os.Getenv("SOUNDCLOUD_CLIENT_ID")),
		YTMusicEndpoint:    getEnv("YTMUSIC_ENDPOINT", "https://pipedapi.kavin.rocks"),
		YouTubeEndpoint:    getEnv("YOUTUBE_ENDPOINT", "https://www.youtube.com"),
		ProviderRPS:        getEnvFloat("PROVIDER_RPS", 2),
		RetryAttempts:      getEnvInt("PROVIDER_RETRY_ATTEMPTS", 3),
		RetryDelay:         time.Duration(getEnvInt("PROVIDER_RETRY_DELAY_MS", 500)) * time.Millisecond,
		RedisURL:           getEnv("REDIS_URL", ""),
		CacheTTL:           time.Duration(getEnvInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		CacheDisabled:      getEnvBool("CACHE_DISABLED", false),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDatabase:      getEnv("MONGO_DATABASE", "trackmatch"),
		BatchWorkers:       getEnvInt("BATCH_WORKERS", 4),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:            getEnv("LOG_FILE", ""),
		LogFileMaxSizeMB:   getEnvInt("LOG_FILE_MAX_SIZE_MB", 100),
		LogFileMaxFiles:    getEnvInt("LOG_FILE_MAX_FILES", 3),
		LogFileMaxAgeDays:  getEnvInt("LOG_FILE_MAX_AGE_DAYS", 30),
		OTELEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
	}
}

type fileConfig struct {
	HTTP struct {
		Addr           string  `toml:"addr"`
		RateLimitRPS   float64 `toml:"rate_limit_rps"`
		RateLimitBurst int     `toml:"rate_limit_burst"`
	} `toml:"http"`
	Resolve struct {
		TimeoutSeconds         int      `toml:"timeout_seconds"`
		ProviderTimeoutSeconds int      `toml:"provider_timeout_seconds"`
		Providers              []string `toml:"providers"`
		SearchQuery            string   `toml:"search_query"`
		FilterResults          *bool    `toml:"filter_results"`
		MinScore               float64  `toml:"min_score"`
		ProviderRPS            float64  `toml:"provider_rps"`
		RetryAttempts          int      `toml:"retry_attempts"`
		RetryDelayMS           int      `toml:"retry_delay_ms"`
		BatchWorkers           int      `toml:"batch_workers"`
		UserAgent              string   `toml:"user_agent"`
	} `toml:"resolve"`
	SoundCloud struct {
		Endpoint string `toml:"endpoint"`
		ClientID string `toml:"client_id"`
	} `toml:"soundcloud"`
	YTMusic struct {
		Endpoint string `toml:"endpoint"`
	} `toml:"ytmusic"`
	YouTube struct {
		Endpoint string `toml:"endpoint"`
	} `toml:"youtube"`
	Cache struct {
		RedisURL string `toml:"redis_url"`
		TTLHours int    `toml:"ttl_hours"`
		Disabled *bool  `toml:"disabled"`
	} `toml:"cache"`
	Mongo struct {
		URI      string `toml:"uri"`
		Database string `toml:"database"`
	} `toml:"mongo"`
	Logging struct {
		Level          string `toml:"level"`
		Format         string `toml:"format"`
		File           string `toml:"file"`
		FileMaxSizeMB  int    `toml:"file_max_size_mb"`
		FileMaxFiles   int    `toml:"file_max_files"`
		FileMaxAgeDays int    `toml:"file_max_age_days"`
	} `toml:"logging"`
	Telemetry struct {
		Endpoint    string  `toml:"endpoint"`
		SampleRatio float64 `toml:"sample_ratio"`
	} `toml:"telemetry"`
}

// ApplyFile overlays the TOML file at path. Only values present in the file
// replace the current ones.
func (c *Config) ApplyFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	c.apply(fc)
	return nil
}

func (c *Config) apply(fc fileConfig) {
	setString(&c.HTTPAddr, fc.HTTP.Addr)
	setFloat(&c.HTTPRateLimitRPS, fc.HTTP.RateLimitRPS)
	setInt(&c.HTTPRateLimitBurst, fc.HTTP.RateLimitBurst)

	if fc.Resolve.TimeoutSeconds > 0 {
		c.ResolveTimeout = time.Duration(fc.Resolve.TimeoutSeconds) * time.Second
	}
	if fc.Resolve.ProviderTimeoutSeconds > 0 {
		c.ProviderTimeout = time.Duration(fc.Resolve.ProviderTimeoutSeconds) * time.Second
	}
	if providers := splitList(strings.Join(fc.Resolve.Providers, ",")); len(providers) > 0 {
		c.AudioProviders = providers
	}
	setString(&c.SearchQuery, fc.Resolve.SearchQuery)
	if fc.Resolve.FilterResults != nil {
		c.FilterResults = *fc.Resolve.FilterResults
	}
	setFloat(&c.MinScore, fc.Resolve.MinScore)
	setFloat(&c.ProviderRPS, fc.Resolve.ProviderRPS)
	setInt(&c.RetryAttempts, fc.Resolve.RetryAttempts)
	if fc.Resolve.RetryDelayMS > 0 {
		c.RetryDelay = time.Duration(fc.Resolve.RetryDelayMS) * time.Millisecond
	}
	setInt(&c.BatchWorkers, fc.Resolve.BatchWorkers)
	setString(&c.UserAgent, fc.Resolve.UserAgent)

	setString(&c.SoundCloudEndpoint, fc.SoundCloud.Endpoint)
	setString(&c.SoundCloudClientID, fc.SoundCloud.ClientID)
	setString(&c.YTMusicEndpoint, fc.YTMusic.Endpoint)
	setString(&c.YouTubeEndpoint, fc.YouTube.Endpoint)

	setString(&c.RedisURL, fc.Cache.RedisURL)
	if fc.Cache.TTLHours > 0 {
		c.CacheTTL = time.Duration(fc.Cache.TTLHours) * time.Hour
	}
	if fc.Cache.Disabled != nil {
		c.CacheDisabled = *fc.Cache.Disabled
	}

	setString(&c.MongoURI, fc.Mongo.URI)
	setString(&c.MongoDatabase, fc.Mongo.Database)

	if level := strings.ToLower(strings.TrimSpace(fc.Logging.Level)); level != "" {
		c.LogLevel = level
	}
	if format := strings.ToLower(strings.TrimSpace(fc.Logging.Format)); format != "" {
		c.LogFormat = format
	}
	setString(&c.LogFile, fc.Logging.File)
	setInt(&c.LogFileMaxSizeMB, fc.Logging.FileMaxSizeMB)
	setInt(&c.LogFileMaxFiles, fc.Logging.FileMaxFiles)
	setInt(&c.LogFileMaxAgeDays, fc.Logging.FileMaxAgeDays)

	setString(&c.OTELEndpoint, fc.Telemetry.Endpoint)
	setFloat(&c.OTELSampleRatio, fc.Telemetry.SampleRatio)
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func setInt(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}

func setFloat(dst *float64, value float64) {
	if value > 0 {
		*dst = value
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		value := strings.ToLower(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
