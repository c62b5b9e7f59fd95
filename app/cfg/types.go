package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath string

	// HTTP server
	Port           string
	BaseUrl        string
	AllowedOrigin  string
	TrustedProxies []string

	// Catalog
	CatalogURL     string
	CatalogTimeout time.Duration
	CatalogRPM     int

	// Watchlist behavior
	AddCooldown     time.Duration
	DisableRealtime bool
	SeedFile        string

	// Background tasks
	WorkerCount       int
	SchedulerInterval int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
