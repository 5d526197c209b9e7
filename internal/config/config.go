package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Discovery scheduler configuration
	Discovery DiscoveryConfig `env:",prefix=DISCOVERY_"`

	// Code source configuration
	Source SourceConfig `env:",prefix=SOURCE_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string `env:"PORT,default=8080"`
	Host         string `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds
	// AdminToken gates the operator endpoints; empty disables the check.
	AdminToken string `env:"ADMIN_TOKEN"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=codecast"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`
}

// DiscoveryConfig holds discovery scheduler configuration
type DiscoveryConfig struct {
	// Interval between discovery cycles.
	Interval time.Duration `env:"INTERVAL,default=30m"`
	// StartupDelay before the immediate first cycle after process start.
	StartupDelay time.Duration `env:"STARTUP_DELAY,default=10s"`
}

// SourceConfig holds code source configuration
type SourceConfig struct {
	// APIBaseURL is the structured code API endpoint.
	APIBaseURL string `env:"API_BASE_URL,default=https://hoyo-codes.seria.moe/codes"`
	// WuwaScrapeURL is the page scraped for Wuthering Waves codes.
	WuwaScrapeURL string `env:"WUWA_SCRAPE_URL,default=https://game8.co/games/Wuthering-Waves/archives/453149"`
	// FetchTimeout bounds each outbound source request.
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT,default=20s"`
	// RequestsPerSecond and Burst throttle all outbound source requests.
	RequestsPerSecond float64 `env:"REQUESTS_PER_SECOND,default=2"`
	Burst             int     `env:"BURST,default=4"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
