package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// ErrHelp is returned when usage was requested and printed.
var ErrHelp = errors.New("help requested")

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" description:"Path to the SQLite database file (required)"`

	// HTTP server
	Port           string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl        string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://watchlist.example.com)"`
	AllowedOrigin  string `long:"allowed-origin" env:"ALLOWED_ORIGIN" default:"*" description:"Origin allowed by CORS and the realtime endpoint"`
	TrustedProxies string `long:"trusted-proxies" env:"TRUSTED_PROXIES" description:"Comma separated proxy addresses or CIDRs whose forwarding headers are trusted (default: all)"`

	// Catalog
	CatalogURL     string        `long:"catalog-url" env:"CATALOG_URL" default:"https://graphql.anilist.co" description:"AniList GraphQL endpoint"`
	CatalogTimeout time.Duration `long:"catalog-timeout" env:"CATALOG_TIMEOUT" default:"15s" description:"Timeout for a single catalog request"`
	CatalogRPM     int           `long:"catalog-rpm" env:"CATALOG_RPM" default:"90" description:"Outbound catalog requests per minute (0 disables the limit)"`

	// Watchlist behavior
	AddCooldown     int    `long:"add-cooldown" env:"ADD_COOLDOWN" default:"60" description:"Seconds a client must wait between adds"`
	DisableRealtime bool   `long:"disable-realtime" env:"DISABLE_REALTIME" description:"Disable the websocket change feed"`
	SeedFile        string `long:"seed-file" env:"SEED_FILE" description:"YAML file with catalog ids to import at startup"`

	// Background tasks
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Scheduler interval in seconds"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Watchlist/1.0" description:"User agent string for catalog requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment into a Cfg.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.DBPath == "" {
		return nil, fmt.Errorf("database path is required (--db-path or DB_PATH)")
	}
	if raw.AddCooldown <= 0 {
		return nil, fmt.Errorf("add cooldown must be positive, got %d", raw.AddCooldown)
	}
	if raw.CatalogRPM < 0 {
		return nil, fmt.Errorf("catalog rpm must not be negative, got %d", raw.CatalogRPM)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		AllowedOrigin:     raw.AllowedOrigin,
		TrustedProxies:    splitList(raw.TrustedProxies),
		CatalogURL:        raw.CatalogURL,
		CatalogTimeout:    raw.CatalogTimeout,
		CatalogRPM:        raw.CatalogRPM,
		AddCooldown:       time.Duration(raw.AddCooldown) * time.Second,
		DisableRealtime:   raw.DisableRealtime,
		SeedFile:          raw.SeedFile,
		WorkerCount:       max(raw.WorkerCount, 1),
		SchedulerInterval: raw.SchedulerInterval,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

// LogLevel is the slog level matching the debug setting.
func (c *Cfg) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func applyTimezone(timezone string) error {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}
