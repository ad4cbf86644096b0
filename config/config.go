/*
Package config loads the engine's TOML configuration.

PURPOSE:
  One file configures the server, the database, the rules cache, ledger
  defaults and the scheduler. Every key is optional: Load overlays the file
  on Default() and validates the result.

EXAMPLE (accountability.toml):
  environment = "production"
  timezone    = "America/New_York"

  [server]
  port = 8080

  [database]
  path = "/var/lib/accountability/engine.db"

  [scheduler]
  enabled  = true
  daily_at = "06:00"

SEE ALSO:
  - cmd/accountability/main.go: Flag overrides
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

const EnvironmentProduction = "production"

type Config struct {
	Environment string            `toml:"environment"`
	Timezone    string            `toml:"timezone"`
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Rules       RulesConfig       `toml:"rules"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Punishments PunishmentsConfig `toml:"punishments"`
}

type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	ReadTimeout  string `toml:"read_timeout"`
	WriteTimeout string `toml:"write_timeout"`
	IdleTimeout  string `toml:"idle_timeout"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type RulesConfig struct {
	CacheTTL string `toml:"cache_ttl"`
}

type LedgerConfig struct {
	DefaultInterestRate float64 `toml:"default_interest_rate"`
	ViolationDebtAmount float64 `toml:"violation_debt_amount"`
	CardioBuyoutMinutes int     `toml:"cardio_buyout_minutes"`
	CardioBuyoutAmount  float64 `toml:"cardio_buyout_amount"`
}

type SchedulerConfig struct {
	Enabled       bool   `toml:"enabled"`
	DailyAt       string `toml:"daily_at"`
	WeeklyDay     string `toml:"weekly_day"`
	CheckInterval string `toml:"check_interval"`
}

type PunishmentsConfig struct {
	// Seed for modality selection. Zero seeds from the clock.
	Seed int64 `toml:"seed"`
}

func Default() Config {
	return Config{
		Environment: "development",
		Timezone:    "UTC",
		Server: ServerConfig{
			Host:         "",
			Port:         8080,
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
			IdleTimeout:  "60s",
		},
		Database: DatabaseConfig{Path: "accountability.db"},
		Rules:    RulesConfig{CacheTTL: "5m"},
		Ledger: LedgerConfig{
			DefaultInterestRate: 0.30,
			ViolationDebtAmount: 50,
			CardioBuyoutMinutes: 120,
			CardioBuyoutAmount:  50,
		},
		Scheduler: SchedulerConfig{
			Enabled:       false,
			DailyAt:       "06:00",
			WeeklyDay:     "Monday",
			CheckInterval: "1m",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for name, v := range map[string]string{
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.idle_timeout":      c.Server.IdleTimeout,
		"rules.cache_ttl":          c.Rules.CacheTTL,
		"scheduler.check_interval": c.Scheduler.CheckInterval,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Ledger.DefaultInterestRate < 0 {
		errs = append(errs, errors.New("ledger.default_interest_rate must not be negative"))
	}
	if c.Ledger.ViolationDebtAmount <= 0 {
		errs = append(errs, errors.New("ledger.violation_debt_amount must be positive"))
	}
	if c.Ledger.CardioBuyoutMinutes <= 0 || c.Ledger.CardioBuyoutAmount <= 0 {
		errs = append(errs, errors.New("ledger cardio buyout minutes and amount must be positive"))
	}
	if _, _, err := c.Scheduler.DailyTime(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Scheduler.Weekday(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

func (c Config) IsProduction() bool { return c.Environment == EnvironmentProduction }

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port) }

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return mustDuration(s.ReadTimeout), mustDuration(s.WriteTimeout), mustDuration(s.IdleTimeout)
}

func (r RulesConfig) TTL() time.Duration { return mustDuration(r.CacheTTL) }

func (s SchedulerConfig) Interval() time.Duration { return mustDuration(s.CheckInterval) }

// DailyTime parses DailyAt ("HH:MM").
func (s SchedulerConfig) DailyTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.DailyAt)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduler.daily_at %q: use HH:MM", s.DailyAt)
	}
	return t.Hour(), t.Minute(), nil
}

func (s SchedulerConfig) Weekday() (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s.WeeklyDay) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("scheduler.weekly_day %q is not a weekday name", s.WeeklyDay)
}

func (l LedgerConfig) InterestRate() decimal.Decimal {
	return decimal.NewFromFloat(l.DefaultInterestRate)
}

func (l LedgerConfig) ViolationDebt() decimal.Decimal {
	return decimal.NewFromFloat(l.ViolationDebtAmount).Round(2)
}

func (l LedgerConfig) BuyoutAmount() decimal.Decimal {
	return decimal.NewFromFloat(l.CardioBuyoutAmount).Round(2)
}

// mustDuration is only used after Validate, so the zero fallback is never
// observed for a loaded config.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
