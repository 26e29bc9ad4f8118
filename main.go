package main

import (
	"context"
	"os"

	"github.com/paularlott/cli"
	"github.com/paularlott/cli/env"
	"github.com/trustd/trustd/cmd/accesscmd"
	"github.com/trustd/trustd/cmd/device"
	"github.com/trustd/trustd/cmd/policy"
	"github.com/trustd/trustd/cmd/segment"
	"github.com/trustd/trustd/cmd/server"
	"github.com/trustd/trustd/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists
	env.Load()

	// Initialize structured logging
	log.Configure("info", "console")

	rootCmd := &cli.Command{
		Name:        "trustd",
		Version:     version,
		Usage:       "Device trust and network isolation service",
		Description: "A Go-based device trust and network isolation service with REST API, MCP server, and CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "log-level",
				Usage:        "Log level (debug, info, warn, error)",
				DefaultValue: "info",
				EnvVars:      []string{"TRUSTD_LOG_LEVEL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "log-format",
				Usage:        "Log format (console, json)",
				DefaultValue: "console",
				EnvVars:      []string{"TRUSTD_LOG_FORMAT"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:         "server",
				Usage:        "Server URL for client commands",
				DefaultValue: "http://localhost:8080",
				EnvVars:      []string{"TRUSTD_SERVER_URL"},
				Global:       true,
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "API bearer token for client commands",
				EnvVars: []string{"TRUSTD_CLIENT_TOKEN"},
				Global:  true,
			},
		},
		PreRun: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logLevel := cmd.GetString("log-level")
			logFormat := cmd.GetString("log-format")
			log.Configure(logLevel, logFormat)
			return ctx, nil
		},
		Commands: []*cli.Command{
			server.Command(),
			{
				Name:        "device",
				Usage:       "Device trust commands",
				Description: "Register devices and manage trust scores",
				Commands:    device.Commands(),
			},
			{
				Name:        "segment",
				Usage:       "Network segment commands",
				Description: "Manage network segments",
				Commands:    segment.Commands(),
			},
			{
				Name:        "policy",
				Usage:       "Isolation policy commands",
				Description: "Manage isolation policies between segments",
				Commands:    policy.Commands(),
			},
			{
				Name:        "access",
				Usage:       "Access evaluation commands",
				Description: "Evaluate segment-to-segment access and review violations",
				Commands:    accesscmd.Commands(),
			},
		},
	}

	if err := rootCmd.Execute(context.Background()); err != nil {
		log.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
