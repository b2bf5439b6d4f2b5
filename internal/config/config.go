package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"covid-waves/internal/models"
	"covid-waves/pkg/database"
)

// EnvPrefix prefixes every environment variable read by LoadConfig
const EnvPrefix = "COVIDWAVES"

// Config represents the complete application configuration.
// It is built once at start-up and passed by pointer; nothing mutates it afterwards.
type Config struct {
	Source      SourceConfig      `yaml:"source" envconfig:"SOURCE"`
	Window      WindowConfig      `yaml:"window" envconfig:"WINDOW"`
	Cleaning    CleaningConfig    `yaml:"cleaning" envconfig:"CLEANING"`
	Aggregation AggregationConfig `yaml:"aggregation" envconfig:"AGGREGATION"`
	Export      ExportConfig      `yaml:"export" envconfig:"EXPORT"`
	Pipeline    PipelineConfig    `yaml:"pipeline" envconfig:"PIPELINE"`
	Database    DatabaseConfig    `yaml:"database" envconfig:"DATABASE"`
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Metrics     MetricsConfig     `yaml:"metrics" envconfig:"METRICS"`
}

// Leaf tags avoid bare names such as PATH, USER or PORT: envconfig falls back
// to the unprefixed tag name when the prefixed variable is unset.

// SourceConfig locates the raw tracker file
type SourceConfig struct {
	Path      string        `yaml:"path" envconfig:"FILE_PATH" default:"data/european-regional-tracker.csv"`
	URL       string        `yaml:"url" envconfig:"REMOTE_URL" default:"https://raw.githubusercontent.com/asjadnaqvi/COVID19-European-Regional-Tracker/master/04_master/csv_nuts/EUROPE_COVID19_master.csv"`
	Delimiter string        `yaml:"delimiter" envconfig:"DELIMITER" default:";"`
	Refresh   bool          `yaml:"refresh_source" envconfig:"REFRESH" default:"false"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"5m"`
}

// WindowConfig optionally limits the input to a closed date window
type WindowConfig struct {
	LimitDates bool `yaml:"limit_dates" envconfig:"LIMIT_DATES" default:"false"`
	DataStart  Date `yaml:"data_start" envconfig:"DATA_START" default:"2020-02-01"`
	DataEnd    Date `yaml:"data_end" envconfig:"DATA_END" default:"2022-06-24"`
}

// CleaningConfig holds the cleaner's filters and outlier test parameters
type CleaningConfig struct {
	ExcludedRegions   []string    `yaml:"excluded_regions" envconfig:"EXCLUDED_REGIONS" default:"ES707,ES709,PT300,FRY10,FRY20,FRY30,FRY40,FRY50"`
	YearCorrections   map[int]int `yaml:"year_corrections" envconfig:"YEAR_CORRECTIONS" default:"2121:2021,2222:2022"`
	OutlierWindowDays int         `yaml:"outlier_window_days" envconfig:"OUTLIER_WINDOW_DAYS" default:"120"`
	OutlierMinPeriods int         `yaml:"outlier_min_periods" envconfig:"OUTLIER_MIN_PERIODS" default:"15"`
	OutlierSigma      float64     `yaml:"outlier_sigma" envconfig:"OUTLIER_SIGMA" default:"5"`
	OutlierMinValue   float64     `yaml:"outlier_min_value" envconfig:"OUTLIER_MIN_VALUE" default:"100"`
}

// AggregationConfig holds rolling window parameters. The daily window sizes
// are fixed by the column names (7, 14 and 28 days).
type AggregationConfig struct {
	DailyMinPeriods      int `yaml:"daily_min_periods" envconfig:"DAILY_MIN_PERIODS" default:"1"`
	WeeklyShortWindow    int `yaml:"weekly_short_window" envconfig:"WEEKLY_SHORT_WINDOW" default:"4"`
	WeeklyShortMinPeriod int `yaml:"weekly_short_min_periods" envconfig:"WEEKLY_SHORT_MIN_PERIODS" default:"2"`
	WeeklyLongWindow     int `yaml:"weekly_long_window" envconfig:"WEEKLY_LONG_WINDOW" default:"8"`
	WeeklyLongMinPeriod  int `yaml:"weekly_long_min_periods" envconfig:"WEEKLY_LONG_MIN_PERIODS" default:"4"`
	RoundDecimals        int `yaml:"round_decimals" envconfig:"ROUND_DECIMALS" default:"2"`
}

// ExportConfig controls the written artifacts
type ExportConfig struct {
	Dir        string `yaml:"dir" envconfig:"EXPORT_DIR" default:"data"`
	DailyName  string `yaml:"daily_name" envconfig:"DAILY_NAME" default:"covid-waves-data-clean"`
	WeeklyName string `yaml:"weekly_name" envconfig:"WEEKLY_NAME" default:"covid-waves-data-clean-weekly"`
	Delimiter  string `yaml:"delimiter" envconfig:"DELIMITER" default:","`
	DailyXLSX  bool   `yaml:"daily_xlsx" envconfig:"DAILY_XLSX" default:"false"`
	WeeklyXLSX bool   `yaml:"weekly_xlsx" envconfig:"WEEKLY_XLSX" default:"true"`
}

// PipelineConfig controls per-region fan-out
type PipelineConfig struct {
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"0"`
}

// DatabaseConfig holds the optional PostgreSQL sink
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"DB_ENABLED" default:"false"`
	Host            string        `yaml:"host" envconfig:"DB_HOST" default:"localhost"`
	Port            int           `yaml:"port" envconfig:"DB_PORT" default:"5432"`
	User            string        `yaml:"user" envconfig:"DB_USER" default:"postgres"`
	Password        string        `yaml:"password" envconfig:"DB_PASSWORD"`
	Database        string        `yaml:"database" envconfig:"DB_NAME" default:"covid_waves"`
	SSLMode         string        `yaml:"sslmode" envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" default:"5m"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"LISTEN_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"LISTEN_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// MetricsConfig controls the CLI's optional /metrics listener
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Option adjusts the configuration while it is being built
type Option func(*Config)

// LoadConfig builds the configuration: defaults and environment (a .env file
// in the working directory is loaded first), then the YAML file at path when
// one is given. Options run last, before validation.
func LoadConfig(path string, opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays the keys present in the YAML file onto cfg
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks ranges and cross-field constraints
func (c *Config) Validate() error {
	var problems []string

	if c.Source.Path == "" {
		problems = append(problems, "source.path is required")
	}
	if len([]rune(c.Source.Delimiter)) != 1 {
		problems = append(problems, "source.delimiter must be a single character")
	}
	if len([]rune(c.Export.Delimiter)) != 1 {
		problems = append(problems, "export.delimiter must be a single character")
	}
	if c.Source.Refresh && c.Source.URL == "" {
		problems = append(problems, "source.url is required when refresh_source is set")
	}
	if c.Window.LimitDates {
		if c.Window.DataStart.IsZero() || c.Window.DataEnd.IsZero() {
			problems = append(problems, "window.data_start and window.data_end are required when limit_dates is set")
		} else if c.Window.DataEnd.Before(c.Window.DataStart.Time) {
			problems = append(problems, "window.data_end must not be before window.data_start")
		}
	}
	if c.Cleaning.OutlierWindowDays < 1 {
		problems = append(problems, "cleaning.outlier_window_days must be positive")
	}
	if c.Cleaning.OutlierMinPeriods < 2 {
		problems = append(problems, "cleaning.outlier_min_periods must be at least 2")
	}
	if c.Cleaning.OutlierSigma <= 0 {
		problems = append(problems, "cleaning.outlier_sigma must be positive")
	}
	a := c.Aggregation
	if a.DailyMinPeriods < 1 || a.DailyMinPeriods > 7 {
		problems = append(problems, "aggregation.daily_min_periods must be between 1 and 7")
	}
	if a.WeeklyShortWindow < 1 || a.WeeklyShortMinPeriod < 1 || a.WeeklyShortMinPeriod > a.WeeklyShortWindow {
		problems = append(problems, "aggregation weekly short window/min periods out of range")
	}
	if a.WeeklyLongWindow < 1 || a.WeeklyLongMinPeriod < 1 || a.WeeklyLongMinPeriod > a.WeeklyLongWindow {
		problems = append(problems, "aggregation weekly long window/min periods out of range")
	}
	if a.RoundDecimals < 0 {
		problems = append(problems, "aggregation.round_decimals must not be negative")
	}
	if c.Pipeline.Workers < 0 {
		problems = append(problems, "pipeline.workers must not be negative")
	}
	if c.Database.Enabled && c.Database.Host == "" {
		problems = append(problems, "database.host is required when the database is enabled")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port out of range")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// InputWindow returns the configured date window, or nil when the input is
// not limited
func (c *Config) InputWindow() *models.DateWindow {
	if !c.Window.LimitDates {
		return nil
	}
	return &models.DateWindow{Start: c.Window.DataStart.Time, End: c.Window.DataEnd.Time}
}

// WorkerCount returns the per-region fan-out, defaulting to the CPU count
func (c *Config) WorkerCount() int {
	if c.Pipeline.Workers > 0 {
		return c.Pipeline.Workers
	}
	return runtime.NumCPU()
}

// Connection converts the section to the database package's configuration
func (d DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// WithRefresh forces the remote refresh on
func WithRefresh(refresh bool) Option {
	return func(c *Config) {
		if refresh {
			c.Source.Refresh = true
		}
	}
}

// WithoutDatabase disables the PostgreSQL sink
func WithoutDatabase() Option {
	return func(c *Config) {
		c.Database.Enabled = false
	}
}

// WithLogLevel overrides the configured log level
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.Logging.Level = level
		}
	}
}
