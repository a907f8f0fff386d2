package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Data Golf API
	DataGolfAPIKey  string        `envconfig:"DATAGOLF_API_KEY" required:"true"`
	DataGolfBaseURL string        `envconfig:"DATAGOLF_BASE_URL" default:"https://feeds.datagolf.com"`
	DataGolfTimeout time.Duration `envconfig:"DATAGOLF_TIMEOUT" default:"30s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"golfpools"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"golfpools_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis (lock store, cache invalidation, score events)
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Tours polled for live scores
	Tours []string `envconfig:"TOURS" default:"pga,euro,kft,alt"`

	// Tournament days (weekday names) on which the daily bootstrap must run
	TournamentDays []string `envconfig:"TOURNAMENT_DAYS" default:"Thursday,Friday,Saturday,Sunday"`

	// Task queue
	QueueWorkers int `envconfig:"QUEUE_WORKERS" default:"8"`

	// Score poller
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"180s"`
	PollLockTTL      time.Duration `envconfig:"POLL_LOCK_TTL" default:"150s"`
	PollSoftTimeout  time.Duration `envconfig:"POLL_SOFT_TIMEOUT" default:"60s"`
	PollHardTimeout  time.Duration `envconfig:"POLL_HARD_TIMEOUT" default:"120s"`
	PollStartOffset  time.Duration `envconfig:"POLL_START_OFFSET" default:"20m"`
	PollWindowAfter  time.Duration `envconfig:"POLL_WINDOW_AFTER" default:"5h"`
	PollMaxRetries   int           `envconfig:"POLL_MAX_RETRIES" default:"3"`
	PollRetryBackoff time.Duration `envconfig:"POLL_RETRY_BACKOFF" default:"15s"`

	// Supervisor
	SupervisorCron    string        `envconfig:"SUPERVISOR_CRON" default:"* * * * *"`
	SupervisorLockTTL time.Duration `envconfig:"SUPERVISOR_LOCK_TTL" default:"55s"`

	// Fixed-cadence jobs
	DailyCron        string        `envconfig:"DAILY_CRON" default:"0 5 * * *"`
	FinalizerCron    string        `envconfig:"FINALIZER_CRON" default:"*/15 * * * *"`
	SubstitutionCron string        `envconfig:"SUBSTITUTION_CRON" default:"*/10 * * * *"`
	ReminderCron     string        `envconfig:"REMINDER_CRON" default:"0 * * * *"`
	ReminderWindow   time.Duration `envconfig:"REMINDER_WINDOW" default:"24h"`
	ScoreResetCron   string        `envconfig:"SCORE_RESET_CRON" default:"0 8 * * 3"`
	BucketCron       string        `envconfig:"BUCKET_CRON" default:"0 10 * * 2"`

	// Scoring rules
	StatusPenalty       int     `envconfig:"STATUS_PENALTY" default:"10"`
	RankChangeThreshold int     `envconfig:"RANK_CHANGE_THRESHOLD" default:"5"`
	OddsWindow          float64 `envconfig:"ODDS_WINDOW" default:"0.20"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DataGolfAPIKey == "" {
		return fmt.Errorf("DATAGOLF_API_KEY is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if len(c.Tours) == 0 {
		return fmt.Errorf("at least one tour must be configured")
	}

	if c.PollLockTTL >= c.PollInterval {
		return fmt.Errorf("POLL_LOCK_TTL must be shorter than POLL_INTERVAL")
	}

	for _, day := range c.TournamentDays {
		if _, ok := weekdays[strings.ToLower(day)]; !ok {
			return fmt.Errorf("unknown weekday in TOURNAMENT_DAYS: %q", day)
		}
	}

	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// TournamentWeekdays returns the configured tournament days as weekdays.
func (c *Config) TournamentWeekdays() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool, len(c.TournamentDays))
	for _, d := range c.TournamentDays {
		days[weekdays[strings.ToLower(d)]] = true
	}
	return days
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
