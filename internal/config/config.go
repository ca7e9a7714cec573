// Package config loads draftkeeper settings from command line flags with
// DRAFTKEEPER_* environment variables as defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// envPrefix префикс переменных окружения
const envPrefix = "DRAFTKEEPER_"

var (
	// ErrInvalidConfig is wrapped by every Validate error
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds every tunable of the persistence core
type Config struct {
	DocumentsPath string
	BackupsPath   string
	RedisURL      string
	BusChannel    string
	AIEndpoint    string
	LogLevel      string
	// BackupPassphrase включает шифрование снимков; читается только из окружения
	BackupPassphrase string

	HeartbeatInterval time.Duration
	LeaderTimeout     time.Duration
	DiscoveryDelay    time.Duration
	SaveDebounce      time.Duration
	SaveRetryDelay    time.Duration
	BackupInterval    time.Duration
	BackupTTL         time.Duration
	WarningCooldown   time.Duration

	WarningThreshold     float64
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int

	ShowVersion   bool
	Strict        bool
	AskPassphrase bool
}

// Default returns the built-in defaults
func Default() Config {
	return Config{
		DocumentsPath:        "draftkeeper.db",
		BackupsPath:          "draftkeeper-backups.db",
		BusChannel:           "draftkeeper:leader",
		AIEndpoint:           "http://localhost:8081",
		LogLevel:             "info",
		HeartbeatInterval:    2 * time.Second,
		LeaderTimeout:        5 * time.Second,
		DiscoveryDelay:       500 * time.Millisecond,
		SaveDebounce:         time.Second,
		SaveRetryDelay:       200 * time.Millisecond,
		BackupInterval:       250 * time.Millisecond,
		BackupTTL:            24 * time.Hour,
		WarningCooldown:      30 * time.Second,
		WarningThreshold:     0.8,
		MaxRequestsPerMinute: 20,
		MaxRequestsPerHour:   200,
	}
}

// Load parses global flags from args. getenv supplies environment defaults (os.Getenv
// in production). It returns the validated config and the remaining arguments.
func Load(args []string, getenv func(string) string, output io.Writer) (*Config, []string, error) {
	def := Default()
	env := envReader{getenv: getenv}
	cfg := &Config{}

	fs := flag.NewFlagSet("draftkeeper", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.AskPassphrase, "ask-passphrase", false, "Prompt for the backup encryption passphrase")
	fs.BoolVar(&cfg.Strict, "strict", env.getBool("STRICT", false), "Panic on API misuse (development mode)")

	fs.StringVar(&cfg.DocumentsPath, "db", env.getString("DB", def.DocumentsPath), "Path to the documents database")
	fs.StringVar(&cfg.BackupsPath, "backups", env.getString("BACKUPS", def.BackupsPath), "Path to the emergency backups database")
	fs.StringVar(&cfg.RedisURL, "redis", env.getString("REDIS_URL", def.RedisURL), "Redis URL for cross-process leader election (in-process bus if empty)")
	fs.StringVar(&cfg.BusChannel, "channel", env.getString("BUS_CHANNEL", def.BusChannel), "Broadcast channel name")
	fs.StringVar(&cfg.AIEndpoint, "ai", env.getString("AI_ENDPOINT", def.AIEndpoint), "Completion service URL")
	fs.StringVar(&cfg.LogLevel, "log-level", env.getString("LOG_LEVEL", def.LogLevel), "Log level: debug, info, warn, error")

	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat", env.getDuration("HEARTBEAT_INTERVAL", def.HeartbeatInterval), "Leader heartbeat interval")
	fs.DurationVar(&cfg.LeaderTimeout, "leader-timeout", env.getDuration("LEADER_TIMEOUT", def.LeaderTimeout), "Heartbeat silence before re-election")
	fs.DurationVar(&cfg.DiscoveryDelay, "discovery", env.getDuration("DISCOVERY_DELAY", def.DiscoveryDelay), "Wait for an existing leader at startup")
	fs.DurationVar(&cfg.SaveDebounce, "debounce", env.getDuration("SAVE_DEBOUNCE", def.SaveDebounce), "Quiet period before a save is written")
	fs.DurationVar(&cfg.SaveRetryDelay, "retry-delay", env.getDuration("SAVE_RETRY_DELAY", def.SaveRetryDelay), "Delay before retrying a failed write")
	fs.DurationVar(&cfg.BackupInterval, "backup-interval", env.getDuration("BACKUP_INTERVAL", def.BackupInterval), "Minimum interval between emergency snapshots")
	fs.DurationVar(&cfg.BackupTTL, "backup-ttl", env.getDuration("BACKUP_TTL", def.BackupTTL), "Lifetime of an emergency snapshot")
	fs.DurationVar(&cfg.WarningCooldown, "warning-cooldown", env.getDuration("WARNING_COOLDOWN", def.WarningCooldown), "Suppression period of rate limit warnings")

	fs.Float64Var(&cfg.WarningThreshold, "warning-threshold", env.getFloat("WARNING_THRESHOLD", def.WarningThreshold), "Usage fraction that triggers a rate limit warning")
	fs.IntVar(&cfg.MaxRequestsPerMinute, "rpm", env.getInt("MAX_REQUESTS_PER_MINUTE", def.MaxRequestsPerMinute), "AI requests allowed per minute")
	fs.IntVar(&cfg.MaxRequestsPerHour, "rph", env.getInt("MAX_REQUESTS_PER_HOUR", def.MaxRequestsPerHour), "AI requests allowed per hour")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg.BackupPassphrase = env.getString("BACKUP_PASSPHRASE", "")

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, fs.Args(), nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	var errs []error

	intervals := []struct {
		name  string
		value time.Duration
	}{
		{"heartbeat", c.HeartbeatInterval},
		{"leader-timeout", c.LeaderTimeout},
		{"discovery", c.DiscoveryDelay},
		{"debounce", c.SaveDebounce},
		{"backup-interval", c.BackupInterval},
		{"backup-ttl", c.BackupTTL},
		{"warning-cooldown", c.WarningCooldown},
	}
	for _, iv := range intervals {
		if iv.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", iv.name, iv.value))
		}
	}

	if c.SaveRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry-delay must not be negative, got %s", c.SaveRetryDelay))
	}
	if c.LeaderTimeout <= c.HeartbeatInterval {
		errs = append(errs, fmt.Errorf("leader-timeout (%s) must exceed heartbeat (%s)", c.LeaderTimeout, c.HeartbeatInterval))
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold > 1 {
		errs = append(errs, fmt.Errorf("warning-threshold must be in (0, 1], got %g", c.WarningThreshold))
	}
	if c.MaxRequestsPerMinute <= 0 || c.MaxRequestsPerHour <= 0 {
		errs = append(errs, fmt.Errorf("rate limits must be positive, got %d/min %d/hour", c.MaxRequestsPerMinute, c.MaxRequestsPerHour))
	}
	if c.DocumentsPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.BackupsPath == "" {
		errs = append(errs, errors.New("backups path is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ParseLevel converts a level name to slog.Level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// envReader читает значения по умолчанию из окружения; некорректные значения игнорируются
type envReader struct {
	getenv func(string) string
}

func (e envReader) raw(name string) string {
	if e.getenv == nil {
		return ""
	}
	return strings.TrimSpace(e.getenv(envPrefix + name))
}

func (e envReader) getString(name, fallback string) string {
	if v := e.raw(name); v != "" {
		return v
	}
	return fallback
}

func (e envReader) getDuration(name string, fallback time.Duration) time.Duration {
	v := e.raw(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid environment value, using default", "name", envPrefix+name, "value", v, "default", fallback)
		return fallback
	}
	return d
}

func (e envReader) getFloat(name string, fallback float64) float64 {
	v := e.raw(name)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid environment value, using default", "name", envPrefix+name, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func (e envReader) getInt(name string, fallback int) int {
	v := e.raw(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid environment value, using default", "name", envPrefix+name, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func (e envReader) getBool(name string, fallback bool) bool {
	v := e.raw(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid environment value, using default", "name", envPrefix+name, "value", v, "default", fallback)
		return fallback
	}
	return b
}
