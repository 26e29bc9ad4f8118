package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/paularlott/cli"
)

// Config holds the application configuration
type Config struct {
	DataDir             string
	ListenAddr          string
	APIAuthToken        string // bearer token (or bcrypt hash of one) for /api routes
	MCPAuthToken        string // bearer token for the /mcp endpoint
	MaintenanceInterval time.Duration
	ConfigFile          string // Path to .env file (if loaded)
}

// Load loads configuration with the following priority (highest to lowest):
// 1. CLI flag values (passed as opts)
// 2. .env file (if exists)
// 3. Environment variables
// 4. Default values
func Load(opts *Config) *Config {
	cfg := &Config{
		DataDir:             coalesce(os.Getenv("TRUSTD_DATA_DIR"), "./data"),
		ListenAddr:          coalesce(os.Getenv("TRUSTD_LISTEN_ADDR"), ":8080"),
		APIAuthToken:        os.Getenv("TRUSTD_API_TOKEN"),
		MCPAuthToken:        os.Getenv("TRUSTD_MCP_TOKEN"),
		MaintenanceInterval: time.Hour,
	}

	if interval := os.Getenv("TRUSTD_MAINTENANCE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			cfg.MaintenanceInterval = d
		}
	}

	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := loadFromEnvFile(cfg, envFile); err == nil {
			cfg.ConfigFile = envFile
		}
	}

	if opts != nil {
		if opts.DataDir != "" {
			cfg.DataDir = opts.DataDir
		}
		if opts.ListenAddr != "" {
			cfg.ListenAddr = opts.ListenAddr
		}
		if opts.APIAuthToken != "" {
			cfg.APIAuthToken = opts.APIAuthToken
		}
		if opts.MCPAuthToken != "" {
			cfg.MCPAuthToken = opts.MCPAuthToken
		}
		if opts.MaintenanceInterval > 0 {
			cfg.MaintenanceInterval = opts.MaintenanceInterval
		}
	}

	return cfg
}

// FromCommand builds a Config from parsed CLI flags
func FromCommand(cmd *cli.Command) *Config {
	opts := &Config{
		DataDir:      cmd.GetString("data-dir"),
		ListenAddr:   cmd.GetString("listen-addr"),
		APIAuthToken: cmd.GetString("api-token"),
		MCPAuthToken: cmd.GetString("mcp-token"),
	}
	if interval := cmd.GetString("maintenance-interval"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			opts.MaintenanceInterval = d
		}
	}
	return Load(opts)
}

// GetFlags returns the server configuration flags
func GetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Data directory path",
			EnvVars: []string{"TRUSTD_DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "listen-addr",
			Usage:   "Server listen address (e.g., :8080)",
			EnvVars: []string{"TRUSTD_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "Bearer token (or bcrypt hash) required for API routes",
			EnvVars: []string{"TRUSTD_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "mcp-token",
			Usage:   "Bearer token required for the MCP endpoint",
			EnvVars: []string{"TRUSTD_MCP_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "maintenance-interval",
			Usage:   "Interval between maintenance sweeps (e.g., 1h, 30m)",
			EnvVars: []string{"TRUSTD_MAINTENANCE_INTERVAL"},
		},
	}
}

// loadFromEnvFile loads configuration from a .env file
func loadFromEnvFile(cfg *Config, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE or KEY="VALUE"
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "TRUSTD_DATA_DIR":
			cfg.DataDir = value
		case "TRUSTD_LISTEN_ADDR":
			cfg.ListenAddr = value
		case "TRUSTD_API_TOKEN":
			cfg.APIAuthToken = value
		case "TRUSTD_MCP_TOKEN":
			cfg.MCPAuthToken = value
		case "TRUSTD_MAINTENANCE_INTERVAL":
			if d, err := time.ParseDuration(value); err == nil && d > 0 {
				cfg.MaintenanceInterval = d
			}
		}
	}

	return scanner.Err()
}

// IsAPIAuthEnabled checks if API authentication is configured
func (c *Config) IsAPIAuthEnabled() bool {
	return c.APIAuthToken != ""
}

// IsMCPAuthEnabled checks if MCP authentication is configured
func (c *Config) IsMCPAuthEnabled() bool {
	return c.MCPAuthToken != ""
}

// String returns a string representation of the config source
func (c *Config) String() string {
	if c.ConfigFile != "" {
		return fmt.Sprintf(".env file (%s)", c.ConfigFile)
	}
	return "environment variables"
}

// coalesce returns the first non-empty string value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
