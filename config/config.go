// Package config loads the kabuka configuration.
//
// Values come, by increasing precedence, from built-in defaults, a YAML file
// (kabuka.yaml in ., ./config or $HOME/.config/kabuka), and KABUKA_ prefixed
// environment variables, where dots in keys become underscores:
// KABUKA_API_BASE_URL overrides api.base_url. A .env file in the working
// directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // session timezones must resolve without a system zoneinfo

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/etnz/kabuka"
)

// Stale result policies.
const (
	StaleApply   = "apply"
	StaleDiscard = "discard"
)

type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	API         APIConfig          `mapstructure:"api"`
	Engine      EngineConfig       `mapstructure:"engine"`
	Refresh     RefreshConfig      `mapstructure:"refresh"`
	Log         LogConfig          `mapstructure:"log"`
	Instruments []InstrumentConfig `mapstructure:"instruments"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RequestsPerSecond limits quote requests, 0 means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	// PortfolioPath is the aggregate endpoint.
	PortfolioPath string `mapstructure:"portfolio_path"`
}

type EngineConfig struct {
	// Mode is kabuka.ModeNative or kabuka.ModeBuiltin.
	Mode string `mapstructure:"mode"`
}

type RefreshConfig struct {
	// Interval is the auto update period in seconds, one of Intervals.
	Interval     int    `mapstructure:"interval"`
	Intervals    []int  `mapstructure:"intervals"`
	AutoStart    bool   `mapstructure:"auto_start"`
	StaleResults string `mapstructure:"stale_results"`
	// Timezone of the session cron specs.
	Timezone string          `mapstructure:"timezone"`
	Sessions []SessionConfig `mapstructure:"sessions"`
}

// SessionConfig is a trading session: the scheduler starts at Start and
// stops at Stop, both standard 5 field cron specs.
type SessionConfig struct {
	Start string `mapstructure:"start"`
	Stop  string `mapstructure:"stop"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// InstrumentConfig declares a tracked instrument, with its holding when
// Shares or PurchasePrice is set.
type InstrumentConfig struct {
	Key           string  `mapstructure:"key"`
	Name          string  `mapstructure:"name"`
	Currency      string  `mapstructure:"currency"`
	Path          string  `mapstructure:"path"`
	Kind          string  `mapstructure:"kind"`
	Shares        int64   `mapstructure:"shares"`
	PurchasePrice float64 `mapstructure:"purchase_price"`
	Notional      float64 `mapstructure:"notional"`
}

// Load reads the configuration. file, when not empty, is the configuration
// file to use and must exist. Otherwise kabuka.yaml is searched and is
// optional.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("kabuka")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "kabuka"))
		}
	}

	v.SetEnvPrefix("KABUKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("api.base_url", "http://localhost:8788")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.requests_per_second", 0)
	v.SetDefault("api.burst", 1)
	v.SetDefault("api.portfolio_path", "/api/finance/portfolio")

	v.SetDefault("engine.mode", kabuka.ModeNative)

	v.SetDefault("refresh.interval", 60)
	v.SetDefault("refresh.intervals", []int{10, 30, 60, 300, 600})
	v.SetDefault("refresh.auto_start", true)
	v.SetDefault("refresh.stale_results", StaleApply)
	v.SetDefault("refresh.timezone", "Asia/Tokyo")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("instruments", []map[string]any{
		{"key": "sony", "name": "Sony Group", "currency": "JPY", "path": "/api/finance/sony", "kind": "equity", "shares": 1000, "purchase_price": 333},
		{"key": "rakuten", "name": "Rakuten Group", "currency": "JPY", "path": "/api/finance/rakuten", "kind": "equity", "shares": 100, "purchase_price": 977},
		{"key": "imurayama", "name": "JX Advanced Metals", "currency": "JPY", "path": "/api/finance/imurayama", "kind": "equity", "shares": 300, "purchase_price": 1801},
		{"key": "dow", "name": "Dow Jones (DIA)", "currency": "USD", "path": "/api/finance/dow", "kind": "index"},
		{"key": "nikkei", "name": "Nikkei 225", "currency": "JPY", "path": "/api/finance/nikkei", "kind": "index"},
		{"key": "usdjpy", "name": "USD/JPY", "currency": "JPY", "path": "/api/finance/usdjpy", "kind": "fx", "notional": 1000},
	})
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url %q is not an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		add("api.timeout must not be negative")
	}
	if c.API.RequestsPerSecond < 0 {
		add("api.requests_per_second must not be negative")
	}

	if _, err := kabuka.LoaderFor(c.Engine.Mode); err != nil {
		add("engine.mode: %w", err)
	}

	if len(c.Refresh.Intervals) == 0 {
		add("refresh.intervals must not be empty")
	}
	for _, n := range c.Refresh.Intervals {
		if n <= 0 {
			add("refresh.intervals: %d is not a positive number of seconds", n)
		}
	}
	if !slices.Contains(c.Refresh.Intervals, c.Refresh.Interval) {
		add("refresh.interval %d is not one of %v", c.Refresh.Interval, c.Refresh.Intervals)
	}
	if c.Refresh.StaleResults != StaleApply && c.Refresh.StaleResults != StaleDiscard {
		add("refresh.stale_results %q, want %q or %q", c.Refresh.StaleResults, StaleApply, StaleDiscard)
	}
	if _, err := time.LoadLocation(c.Refresh.Timezone); err != nil {
		add("refresh.timezone: %w", err)
	}
	for i, s := range c.Refresh.Sessions {
		if _, err := cron.ParseStandard(s.Start); err != nil {
			add("refresh.sessions[%d].start: %w", i, err)
		}
		if _, err := cron.ParseStandard(s.Stop); err != nil {
			add("refresh.sessions[%d].stop: %w", i, err)
		}
	}

	if len(c.Instruments) == 0 {
		add("no instrument configured")
	}
	seen := make(map[string]bool)
	for i, in := range c.Instruments {
		if in.Key == "" {
			add("instruments[%d]: missing key", i)
		} else if seen[in.Key] {
			add("instruments[%d]: duplicate key %q", i, in.Key)
		}
		seen[in.Key] = true
		if !strings.HasPrefix(in.Path, "/") {
			add("instrument %q: path %q must start with /", in.Key, in.Path)
		}
		switch kabuka.Kind(in.Kind) {
		case kabuka.KindEquity, kabuka.KindIndex, kabuka.KindFX:
		default:
			add("instrument %q: unknown kind %q", in.Key, in.Kind)
		}
		if in.Shares < 0 || in.PurchasePrice < 0 {
			add("instrument %q: holding must not be negative", in.Key)
		}
		if in.held() && kabuka.Kind(in.Kind) != kabuka.KindEquity {
			add("instrument %q: only equities can be held", in.Key)
		}
		if in.Notional < 0 {
			add("instrument %q: notional must not be negative", in.Key)
		}
	}
	return errors.Join(errs...)
}

func (in InstrumentConfig) held() bool { return in.Shares > 0 || in.PurchasePrice > 0 }

// Tracked converts the instruments, in configuration order.
func (c *Config) Tracked() []kabuka.Tracked {
	tracked := make([]kabuka.Tracked, 0, len(c.Instruments))
	for _, in := range c.Instruments {
		t := kabuka.Tracked{
			Instrument: kabuka.Instrument{
				Key:      in.Key,
				Name:     in.Name,
				Currency: in.Currency,
				Path:     in.Path,
				Kind:     kabuka.Kind(in.Kind),
			},
			Notional: in.Notional,
		}
		if in.held() {
			t.Holding = &kabuka.Holding{Shares: in.Shares, PurchasePrice: in.PurchasePrice}
		}
		tracked = append(tracked, t)
	}
	return tracked
}

// Loader returns the engine loader of the configured mode.
func (c *Config) Loader() (kabuka.Loader, error) {
	return kabuka.LoaderFor(c.Engine.Mode)
}
