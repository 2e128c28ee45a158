package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// Config holds all configuration settings.
type Config struct {
	// ListenAddress is the address the HTTP server listens on.
	ListenAddress string `mapstructure:"listen_address"`
	// PublicBaseURL is prepended to download links returned to clients. Empty means relative links.
	PublicBaseURL string `mapstructure:"public_base_url"`
	// StoragePath is the directory holding finished artifacts.
	StoragePath string `mapstructure:"storage_path"`
	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// ProgressTransport selects the progress channel: sse, websocket, or both.
	ProgressTransport string `mapstructure:"progress_transport"`
	// ProgressPollInterval is how often a progress stream reads the job registry (e.g., "500ms").
	ProgressPollInterval string `mapstructure:"progress_poll_interval"`
	// ProgressKeepaliveCount is the number of keep-alive events sent after a terminal status.
	ProgressKeepaliveCount int64 `mapstructure:"progress_keepalive_count"`
	// JobGracePeriod is how long a finished job stays queryable when nobody streams it.
	JobGracePeriod string `mapstructure:"job_grace_period"`
	// JobTTL bounds the lifetime of an unfinished job record in external registries.
	JobTTL string `mapstructure:"job_ttl"`
	// MaxConcurrentDownloads is the maximum number of jobs executing at the same time.
	MaxConcurrentDownloads int64 `mapstructure:"max_concurrent_downloads"`
	// MaxQueuedDownloads is the maximum number of accepted but unfinished jobs.
	MaxQueuedDownloads int64 `mapstructure:"max_queued_downloads"`
	// DownloadTimeout bounds a single extraction-path download (e.g., "30m").
	DownloadTimeout string `mapstructure:"download_timeout"`
	// YtDlpPath is the yt-dlp executable name or path.
	YtDlpPath string `mapstructure:"ytdlp_path"`
	// CookiesFile is the Netscape cookies file passed to yt-dlp when it exists.
	CookiesFile string `mapstructure:"cookies_file"`
	// AudioExtractFormat is the target codec for audio-only jobs (e.g., "mp3").
	AudioExtractFormat string `mapstructure:"audio_extract_format"`
	// AudioExtractQuality is the target bitrate in kbps for audio-only jobs.
	AudioExtractQuality string `mapstructure:"audio_extract_quality"`
	// ExternalDownloaderCommand is the executable used for streaming-service URLs.
	ExternalDownloaderCommand string `mapstructure:"external_downloader_command"`
	// ExternalDownloaderArgs are the arguments for the external downloader.
	// The placeholders {url} and {dir} are replaced before execution.
	ExternalDownloaderArgs []string `mapstructure:"external_downloader_args"`
	// ExternalDownloaderDomains are hosts routed to the external downloader.
	ExternalDownloaderDomains []string `mapstructure:"external_downloader_domains"`
	// ExternalDownloaderTimeout is the hard wall-clock limit of the external downloader.
	ExternalDownloaderTimeout string `mapstructure:"external_downloader_timeout"`
	// MaxVideoFormats is the number of video formats kept in a listing.
	MaxVideoFormats int64 `mapstructure:"max_video_formats"`
	// MaxAudioFormats is the number of audio formats kept in a listing.
	MaxAudioFormats int64 `mapstructure:"max_audio_formats"`
	// DeleteAfterDelivery removes an artifact once its last byte has been delivered.
	DeleteAfterDelivery bool `mapstructure:"delete_after_delivery"`
	// MinFreeDiskSpace rejects new jobs when the storage has less free space (e.g., "500 MB").
	MinFreeDiskSpace string `mapstructure:"min_free_disk_space"`
	// RateLimitPerSecond is the sustained rate of job and listing requests per client.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	// RateLimitBurst is the burst size of the per-client rate limiter.
	RateLimitBurst int64 `mapstructure:"rate_limit_burst"`
	// TrustProxyHeaders takes the client address from X-Forwarded-For and X-Real-IP.
	// Enable it only behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
	// RegistryBackend selects where jobs are stored: memory or redis.
	RegistryBackend string `mapstructure:"registry_backend"`
	// RedisAddress is the host:port of the Redis server.
	RedisAddress string `mapstructure:"redis_address"`
	// RedisPassword is the Redis password.
	RedisPassword string `mapstructure:"redis_password"`
	// RedisDB is the Redis logical database.
	RedisDB int64 `mapstructure:"redis_db"`
	// KafkaBrokers enables job event publishing when not empty.
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	// KafkaTopic is the topic job events are published to.
	KafkaTopic string `mapstructure:"kafka_topic"`
	// AuthLoginURL is the page opened by the auth login command.
	AuthLoginURL string `mapstructure:"auth_login_url"`
	// AuthCookieNames are the cookies whose presence marks a finished login.
	AuthCookieNames []string `mapstructure:"auth_cookie_names"`
	// AuthLoginTimeout is the maximum time to wait for the user to log in.
	AuthLoginTimeout string `mapstructure:"auth_login_timeout"`
	// ServerURL is the server the get command talks to.
	ServerURL string `mapstructure:"server_url"`
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
	// ParsedProgressPollInterval is the parsed progress poll interval.
	ParsedProgressPollInterval time.Duration
	// ParsedJobGracePeriod is the parsed grace period of finished jobs.
	ParsedJobGracePeriod time.Duration
	// ParsedJobTTL is the parsed lifetime of unfinished job records.
	ParsedJobTTL time.Duration
	// ParsedDownloadTimeout is the parsed extraction-path timeout.
	ParsedDownloadTimeout time.Duration
	// ParsedExternalDownloaderTimeout is the parsed external downloader timeout.
	ParsedExternalDownloaderTimeout time.Duration
	// ParsedMinFreeDiskSpace is the parsed free space threshold in bytes.
	ParsedMinFreeDiskSpace uint64
	// ParsedAuthLoginTimeout is the parsed login wait time.
	ParsedAuthLoginTimeout time.Duration
}

const (
	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".media-grabber.yaml"

	// DefaultEnvFilename is the optional dotenv file loaded before the environment is read.
	DefaultEnvFilename = ".env"

	// EnvPrefix is the prefix of environment variables overriding configuration keys.
	EnvPrefix = "MEDIA_GRABBER"

	// DefaultMaxLogLength is the default maximum size (in bytes) of logged HTTP dumps.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// CookiesFileKey is the configuration key updated by the auth login command.
	CookiesFileKey = "cookies_file"
)

// Progress transports.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
	TransportBoth      = "both"
)

// Registry backends.
const (
	RegistryBackendMemory = "memory"
	RegistryBackendRedis  = "redis"
)

// Static error definitions for better error handling.
var (
	// ErrEmptyListenAddress indicates that the server address is missing.
	ErrEmptyListenAddress = errors.New("listen_address cannot be empty")
	// ErrEmptyStoragePath indicates that the storage directory is missing.
	ErrEmptyStoragePath = errors.New("storage_path cannot be empty")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrUnknownProgressTransport indicates an unsupported progress transport.
	ErrUnknownProgressTransport = errors.New("progress_transport must be one of sse, websocket, both")
	// ErrInvalidPollInterval indicates that the progress poll interval is not positive.
	ErrInvalidPollInterval = errors.New("progress_poll_interval must be positive")
	// ErrInvalidKeepaliveCount indicates a negative keep-alive count.
	ErrInvalidKeepaliveCount = errors.New("progress_keepalive_count cannot be negative")
	// ErrInvalidGracePeriod indicates that the job grace period is not positive.
	ErrInvalidGracePeriod = errors.New("job_grace_period must be positive")
	// ErrInvalidJobTTL indicates that the job TTL is not positive.
	ErrInvalidJobTTL = errors.New("job_ttl must be positive")
	// ErrInvalidConcurrentDownloads indicates that the concurrent downloads count is invalid.
	ErrInvalidConcurrentDownloads = errors.New("max_concurrent_downloads must be a positive integer")
	// ErrInvalidQueuedDownloads indicates that the queue bound is smaller than the concurrency.
	ErrInvalidQueuedDownloads = errors.New("max_queued_downloads must not be lower than max_concurrent_downloads")
	// ErrInvalidDownloadTimeout indicates that the download timeout is not positive.
	ErrInvalidDownloadTimeout = errors.New("download_timeout must be positive")
	// ErrEmptyYtDlpPath indicates that the extractor executable is not configured.
	ErrEmptyYtDlpPath = errors.New("ytdlp_path cannot be empty")
	// ErrInvalidExternalTimeout indicates that the external downloader timeout is not positive.
	ErrInvalidExternalTimeout = errors.New("external_downloader_timeout must be positive")
	// ErrInvalidFormatLimit indicates that a format listing limit is not positive.
	ErrInvalidFormatLimit = errors.New("format listing limits must be positive")
	// ErrInvalidRateLimit indicates a negative rate limit or burst.
	ErrInvalidRateLimit = errors.New("rate_limit_per_second and rate_limit_burst cannot be negative")
	// ErrUnknownRegistryBackend indicates an unsupported registry backend.
	ErrUnknownRegistryBackend = errors.New("registry_backend must be memory or redis")
	// ErrEmptyRedisAddress indicates that the redis backend lacks an address.
	ErrEmptyRedisAddress = errors.New("redis_address cannot be empty for the redis registry")
	// ErrEmptyKafkaTopic indicates that brokers are set without a topic.
	ErrEmptyKafkaTopic = errors.New("kafka_topic cannot be empty when kafka_brokers are set")
	// ErrInvalidPublicBaseURL indicates a malformed public base URL.
	ErrInvalidPublicBaseURL = errors.New("public_base_url must be an absolute http(s) URL")
	// ErrInvalidLoginTimeout indicates that the login timeout is not positive.
	ErrInvalidLoginTimeout = errors.New("auth_login_timeout must be positive")
)

// setDefaults registers the default value of every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_address", ":8000")
	v.SetDefault("public_base_url", "")
	v.SetDefault("storage_path", "downloads")
	v.SetDefault("log_level", "info")
	v.SetDefault("progress_transport", TransportBoth)
	v.SetDefault("progress_poll_interval", "500ms")
	v.SetDefault("progress_keepalive_count", 3)
	v.SetDefault("job_grace_period", "10m")
	v.SetDefault("job_ttl", "24h")
	v.SetDefault("max_concurrent_downloads", 4)
	v.SetDefault("max_queued_downloads", 100)
	v.SetDefault("download_timeout", "30m")
	v.SetDefault("ytdlp_path", "yt-dlp")
	v.SetDefault(CookiesFileKey, "cookies.txt")
	v.SetDefault("audio_extract_format", "mp3")
	v.SetDefault("audio_extract_quality", "192")
	v.SetDefault("external_downloader_command", "spotdl")
	v.SetDefault("external_downloader_args", []string{"download", "{url}", "--output", "{dir}"})
	v.SetDefault("external_downloader_domains", []string{"open.spotify.com", "spotify.link"})
	v.SetDefault("external_downloader_timeout", "10m")
	v.SetDefault("max_video_formats", 15)
	v.SetDefault("max_audio_formats", 10)
	v.SetDefault("delete_after_delivery", false)
	v.SetDefault("min_free_disk_space", "500 MB")
	v.SetDefault("rate_limit_per_second", 2)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("trust_proxy_headers", false)
	v.SetDefault("registry_backend", RegistryBackendMemory)
	v.SetDefault("redis_address", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "media-grabber.jobs")
	v.SetDefault("auth_login_url", "https://accounts.google.com/ServiceLogin?service=youtube")
	v.SetDefault("auth_cookie_names", []string{"SID", "__Secure-3PSID", "LOGIN_INFO"})
	v.SetDefault("auth_login_timeout", "10m")
	v.SetDefault("server_url", "http://localhost:8000")
}

// LoadConfig loads configuration settings from defaults, a YAML file, and MEDIA_GRABBER_* variables.
// A missing default file is tolerated, a missing explicitly requested file is an error.
func LoadConfig(configFilename string) (*Config, error) {
	isExplicit := configFilename != ""
	if !isExplicit {
		configFilename = DefaultConfigFilename
	}

	v := viper.GetViper()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configFilename)

	if err := v.ReadInConfig(); err != nil {
		if isExplicit || !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config from file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// isNotExist reports whether err says the configuration file is absent.
func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError

	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// ValidateConfig checks the configuration for validity and sets derived fields.
//
//nolint:funlen,gocognit,cyclop // Validation functions naturally have high complexity and length due to sequential checks.
func ValidateConfig(cfg *Config) error {
	var err error

	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return ErrEmptyListenAddress
	}

	if strings.TrimSpace(cfg.StoragePath) == "" {
		return ErrEmptyStoragePath
	}

	if cfg.PublicBaseURL != "" {
		parsed, parseErr := url.Parse(cfg.PublicBaseURL)
		if parseErr != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return fmt.Errorf("%w: '%s'", ErrInvalidPublicBaseURL, cfg.PublicBaseURL)
		}

		cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	cfg.ProgressTransport = strings.ToLower(strings.TrimSpace(cfg.ProgressTransport))
	if !slices.Contains([]string{TransportSSE, TransportWebSocket, TransportBoth}, cfg.ProgressTransport) {
		return fmt.Errorf("%w: '%s'", ErrUnknownProgressTransport, cfg.ProgressTransport)
	}

	if cfg.ParsedProgressPollInterval, err = parsePositiveDuration(
		cfg.ProgressPollInterval, "progress poll interval", ErrInvalidPollInterval); err != nil {
		return err
	}

	if cfg.ProgressKeepaliveCount < 0 {
		return ErrInvalidKeepaliveCount
	}

	if cfg.ParsedJobGracePeriod, err = parsePositiveDuration(
		cfg.JobGracePeriod, "job grace period", ErrInvalidGracePeriod); err != nil {
		return err
	}

	if cfg.ParsedJobTTL, err = parsePositiveDuration(cfg.JobTTL, "job TTL", ErrInvalidJobTTL); err != nil {
		return err
	}

	if cfg.MaxConcurrentDownloads <= 0 {
		return ErrInvalidConcurrentDownloads
	}

	if cfg.MaxQueuedDownloads < cfg.MaxConcurrentDownloads {
		return ErrInvalidQueuedDownloads
	}

	if cfg.ParsedDownloadTimeout, err = parsePositiveDuration(
		cfg.DownloadTimeout, "download timeout", ErrInvalidDownloadTimeout); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.YtDlpPath) == "" {
		return ErrEmptyYtDlpPath
	}

	if cfg.ParsedExternalDownloaderTimeout, err = parsePositiveDuration(
		cfg.ExternalDownloaderTimeout, "external downloader timeout", ErrInvalidExternalTimeout); err != nil {
		return err
	}

	if cfg.MaxVideoFormats <= 0 || cfg.MaxAudioFormats <= 0 {
		return ErrInvalidFormatLimit
	}

	minFreeDiskSpace := strings.TrimSpace(cfg.MinFreeDiskSpace)
	if minFreeDiskSpace != "" && minFreeDiskSpace != "0" {
		cfg.ParsedMinFreeDiskSpace, err = humanize.ParseBytes(minFreeDiskSpace)
		if err != nil {
			return fmt.Errorf("failed to parse min free disk space: %w", err)
		}
	} else {
		cfg.ParsedMinFreeDiskSpace = 0
	}

	if cfg.RateLimitPerSecond < 0 || cfg.RateLimitBurst < 0 {
		return ErrInvalidRateLimit
	}

	cfg.RegistryBackend = strings.ToLower(strings.TrimSpace(cfg.RegistryBackend))
	switch cfg.RegistryBackend {
	case RegistryBackendMemory:
	case RegistryBackendRedis:
		if strings.TrimSpace(cfg.RedisAddress) == "" {
			return ErrEmptyRedisAddress
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownRegistryBackend, cfg.RegistryBackend)
	}

	cfg.KafkaBrokers = utils.Filter(cfg.KafkaBrokers, func(broker string) bool {
		return strings.TrimSpace(broker) != ""
	})

	if len(cfg.KafkaBrokers) > 0 && strings.TrimSpace(cfg.KafkaTopic) == "" {
		return ErrEmptyKafkaTopic
	}

	if cfg.ParsedAuthLoginTimeout, err = parsePositiveDuration(
		cfg.AuthLoginTimeout, "auth login timeout", ErrInvalidLoginTimeout); err != nil {
		return err
	}

	return nil
}

// parsePositiveDuration parses value and returns nonPositiveErr when it is zero or negative.
func parsePositiveDuration(value, name string, nonPositiveErr error) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	if parsed <= 0 {
		return 0, nonPositiveErr
	}

	return parsed, nil
}

// SaveConfig stores the cookies file location in the configuration file
// while preserving the original format and order.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg.CookiesFile, err)
	}

	// Parse YAML while preserving order using yaml.Node.
	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	setValueInNode(&node, CookiesFileKey, cfg.CookiesFile)

	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file holding only the cookies file key.
func handleMissingConfigFile(configFile, cookiesFile string, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content, err := yaml.Marshal(map[string]string{CookiesFileKey: cookiesFile})
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err = os.WriteFile(configFile, content, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// setValueInNode updates a top-level scalar in the YAML node tree, appending the key when absent.
func setValueInNode(node *yaml.Node, key, value string) {
	// The root node is a document node, content[0] is the actual map.
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	// Key-value pairs are stored as alternating nodes.
	for i := 0; i+1 < len(mapNode.Content); i += 2 {
		if mapNode.Content[i].Value != key {
			continue
		}

		valueNode := mapNode.Content[i+1]
		valueNode.Value = value

		if valueNode.Style == 0 {
			valueNode.Style = yaml.DoubleQuotedStyle
		}

		return
	}

	mapNode.Content = append(mapNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value, Style: yaml.DoubleQuotedStyle},
	)
}
