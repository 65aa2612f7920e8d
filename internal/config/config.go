package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/attendance"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

// Config is the root configuration for tdsync, stored in ~/.tdsync/config.yaml.
// Environment variables override the file; see applyEnv.
type Config struct {
	// Timezone is the IANA zone periods and days are computed in.
	Timezone string `yaml:"timezone"`
	// IdleThresholdMinutes is how long a user may be inactive before their
	// day is considered finished.
	IdleThresholdMinutes int `yaml:"idle_threshold_minutes"`

	TimeDoctor TimeDoctorConfig `yaml:"timedoctor"`
	Monday     MondayConfig     `yaml:"monday"`
	Columns    ColumnsConfig    `yaml:"columns"`
	// Teams maps a user email to the title of their group on the board.
	Teams  Teams        `yaml:"teams"`
	Period PeriodConfig `yaml:"period"`
	Ledger LedgerConfig `yaml:"ledger"`
	Lock   LockConfig   `yaml:"lock"`
	Log    LogConfig    `yaml:"log"`
	HTTP   HTTPConfig   `yaml:"http"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

// TimeDoctorConfig holds Time Doctor API credentials.
type TimeDoctorConfig struct {
	BaseURL   string `yaml:"base_url"`
	CompanyID string `yaml:"company_id"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	// TokenTTLDays is how long a cached login token is trusted.
	TokenTTLDays int `yaml:"token_ttl_days"`
	// TokenCache is the file the login token is cached in.
	TokenCache string `yaml:"token_cache"`
}

// MondayConfig holds monday.com API settings.
type MondayConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
}

// ColumnsConfig names the board columns attendance is written to.
type ColumnsConfig struct {
	ClockIn          string `yaml:"clock_in"`
	ClockOut         string `yaml:"clock_out"`
	Date             string `yaml:"date"`
	TotalWorkedHours string `yaml:"total_worked_hours"`
}

type PeriodConfig struct {
	AllowYearRollover bool `yaml:"allow_year_rollover"`
}

// LedgerConfig selects the run ledger database.
type LedgerConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LockConfig enables the Redis run lock when RedisAddr is set.
type LockConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

const (
	DefaultTimezone          = "America/Chicago"
	DefaultIdleThreshold     = attendance.DefaultIdleThresholdMinutes
	DefaultTimeDoctorBaseURL = "https://api2.timedoctor.com/api/1.0"
	DefaultTokenTTLDays      = 180
	DefaultMondayAPIURL      = "https://api.monday.com/v2"
	DefaultMondayAPIVersion  = "2024-10"
	DefaultLockTTL           = 10 * time.Minute
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultRetryCount        = 3

	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "TDSYNC_CONFIG"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	titles := attendance.DefaultColumnTitles()
	return Config{
		Timezone:             DefaultTimezone,
		IdleThresholdMinutes: DefaultIdleThreshold,
		TimeDoctor: TimeDoctorConfig{
			BaseURL:      DefaultTimeDoctorBaseURL,
			TokenTTLDays: DefaultTokenTTLDays,
		},
		Monday: MondayConfig{
			APIURL:     DefaultMondayAPIURL,
			APIVersion: DefaultMondayAPIVersion,
		},
		Columns: ColumnsConfig{
			ClockIn:          titles.ClockIn,
			ClockOut:         titles.ClockOut,
			Date:             titles.Date,
			TotalWorkedHours: titles.TotalWorkedHours,
		},
		Period: PeriodConfig{AllowYearRollover: true},
		Ledger: LedgerConfig{Driver: "sqlite"},
		Lock:   LockConfig{TTL: DefaultLockTTL},
		Log:    LogConfig{Level: "info", Format: "console"},
		HTTP:   HTTPConfig{Timeout: DefaultHTTPTimeout, RetryCount: DefaultRetryCount},
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `# tdsync configuration – ~/.tdsync/config.yaml
#
# Secrets may be left empty here and supplied through the environment:
#   TD_USER_EMAIL, TD_USER_PASSWORD, TD_COMPANY_ID, MONDAY_API_KEY,
#   USER_GROUP_MAP (JSON object of email -> group title).

# IANA time zone days and pay periods are computed in.
timezone: America/Chicago

# Minutes without activity after which today's work is considered finished
# and Clock Out is filled in.
idle_threshold_minutes: 180

timedoctor:
  base_url: https://api2.timedoctor.com/api/1.0
  company_id: ""
  email: ""
  password: ""
  # How long a cached login token is reused before logging in again.
  token_ttl_days: 180
  # Defaults to token.json next to this file.
  token_cache: ""

monday:
  api_url: https://api.monday.com/v2
  api_key: ""
  api_version: "2024-10"

# Column titles on the period boards (matched case-insensitively).
columns:
  clock_in: Clock In
  clock_out: Clock Out
  date: Date
  total_worked_hours: Total Worked Hours

# Email -> group title on the board, e.g.
#   jane@example.com: Engineering
teams: {}

period:
  # Clone January's boards from the previous December.
  allow_year_rollover: true

# Audit trail of runs. driver is sqlite or postgres; an empty sqlite dsn
# means ledger.db next to this file.
ledger:
  driver: sqlite
  dsn: ""

# Set redis_addr to stop two runs from writing the same board at once.
lock:
  redis_addr: ""
  redis_password: ""
  redis_db: 0
  ttl: 10m

log:
  # debug, info, warn or error
  level: info
  # console or json
  format: console

http:
  timeout: 30s
  retry_count: 3
`

// DefaultPath returns the config path, honouring TDSYNC_CONFIG.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".tdsync", "config.yaml"), nil
}

// Load reads the config at path (DefaultPath when empty), creating it with
// annotated defaults on first run, then applies environment overrides.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return defaultConfig(), err
		}
		path = p
	}

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		// Keys missing from the file keep their defaults.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}
	cfg.Path = path

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.fillDefaults()
	cfg.Teams = cfg.Teams.normalized()
	return cfg, nil
}

// applyEnv overlays environment variables onto the file values.
func (c *Config) applyEnv() error {
	setString(&c.TimeDoctor.Email, "TD_USER_EMAIL")
	setString(&c.TimeDoctor.Password, "TD_USER_PASSWORD")
	setString(&c.TimeDoctor.CompanyID, "TD_COMPANY_ID")
	setString(&c.Monday.APIKey, "MONDAY_API_KEY")
	setString(&c.Timezone, "TDSYNC_TIMEZONE")
	setString(&c.Log.Level, "TDSYNC_LOG_LEVEL")
	setString(&c.Lock.RedisAddr, "TDSYNC_REDIS_ADDR")

	if v := os.Getenv("TDSYNC_IDLE_THRESHOLD_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TDSYNC_IDLE_THRESHOLD_MINUTES=%q is not a number", model.ErrConfiguration, v)
		}
		c.IdleThresholdMinutes = n
	}

	if v := os.Getenv("USER_GROUP_MAP"); v != "" {
		var teams map[string]string
		if err := json.Unmarshal([]byte(v), &teams); err != nil {
			return fmt.Errorf("%w: USER_GROUP_MAP is not a JSON object of email to group: %v", model.ErrConfiguration, err)
		}
		if c.Teams == nil {
			c.Teams = Teams{}
		}
		for email, group := range teams {
			c.Teams[email] = group
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// fillDefaults fills values that depend on where the config lives.
func (c *Config) fillDefaults() {
	dir := filepath.Dir(c.Path)
	if c.TimeDoctor.TokenCache == "" {
		c.TimeDoctor.TokenCache = filepath.Join(dir, "token.json")
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "sqlite"
	}
	if c.Ledger.DSN == "" && c.Ledger.Driver == "sqlite" {
		c.Ledger.DSN = filepath.Join(dir, "ledger.db")
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = DefaultLockTTL
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.TimeDoctor.TokenTTLDays <= 0 {
		c.TimeDoctor.TokenTTLDays = DefaultTokenTTLDays
	}
}

// Validate reports every problem that would stop a run. All returned
// errors match model.ErrConfiguration.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{model.ErrConfiguration}, args...)...))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		fail("unknown timezone %q", c.Timezone)
	}
	if c.IdleThresholdMinutes <= 0 {
		fail("idle_threshold_minutes must be positive, got %d", c.IdleThresholdMinutes)
	}
	if c.TimeDoctor.Email == "" || c.TimeDoctor.Password == "" {
		fail("Time Doctor credentials missing (TD_USER_EMAIL / TD_USER_PASSWORD)")
	}
	if c.TimeDoctor.CompanyID == "" {
		fail("Time Doctor company id missing (TD_COMPANY_ID)")
	}
	if c.Monday.APIKey == "" {
		fail("monday.com api key missing (MONDAY_API_KEY)")
	}
	for name, title := range map[string]string{
		"clock_in":           c.Columns.ClockIn,
		"clock_out":          c.Columns.ClockOut,
		"date":               c.Columns.Date,
		"total_worked_hours": c.Columns.TotalWorkedHours,
	} {
		if strings.TrimSpace(title) == "" {
			fail("column title %s is empty", name)
		}
	}
	if err := c.ValidateLedger(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateLedger checks only the settings the ledger commands need.
func (c Config) ValidateLedger() error {
	switch c.Ledger.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unknown ledger driver %q (want sqlite or postgres)", model.ErrConfiguration, c.Ledger.Driver)
	}
	if c.Ledger.DSN == "" {
		return fmt.Errorf("%w: ledger dsn is empty", model.ErrConfiguration)
	}
	return nil
}

// Location loads the configured time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q: %v", model.ErrConfiguration, c.Timezone, err)
	}
	return loc, nil
}

// ColumnTitles returns the configured column titles.
func (c Config) ColumnTitles() attendance.ColumnTitles {
	return attendance.ColumnTitles{
		ClockIn:          strings.TrimSpace(c.Columns.ClockIn),
		ClockOut:         strings.TrimSpace(c.Columns.ClockOut),
		Date:             strings.TrimSpace(c.Columns.Date),
		TotalWorkedHours: strings.TrimSpace(c.Columns.TotalWorkedHours),
	}
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
