// Package device provides the device management CLI commands.
package device

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/paularlott/cli"
	"github.com/trustd/trustd/cmd/client"
	"github.com/trustd/trustd/internal/model"
)

func Commands() []*cli.Command {
	return []*cli.Command{
		registerCommand(),
		getCommand(),
		listCommand(),
		trustSetCommand(),
		trustIncreaseCommand(),
		trustDecreaseCommand(),
		compromiseCommand(),
		trustedCommand(),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:        "register",
		Usage:       "Register a new device",
		Description: "Register a device by fingerprint or by its raw attributes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "fingerprint", Usage: "Device fingerprint (SHA-256 hex)"},
			&cli.StringFlag{Name: "name", Usage: "Device display name"},
			&cli.StringFlag{Name: "owner", Usage: "Owning user identifier", Required: true},
			&cli.StringFlag{Name: "user-agent", Usage: "User agent attribute"},
			&cli.StringFlag{Name: "ip", Usage: "IP address attribute"},
			&cli.StringFlag{Name: "screen", Usage: "Screen resolution attribute"},
			&cli.StringFlag{Name: "timezone", Usage: "Timezone attribute"},
			&cli.StringFlag{Name: "language", Usage: "Language attribute"},
			&cli.StringFlag{Name: "platform", Usage: "Platform attribute"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]any{
				"name":  cmd.GetString("name"),
				"owner": cmd.GetString("owner"),
			}
			if fp := cmd.GetString("fingerprint"); fp != "" {
				req["fingerprint"] = fp
			} else {
				req["attributes"] = model.FingerprintAttributes{
					UserAgent:        cmd.GetString("user-agent"),
					IPAddress:        cmd.GetString("ip"),
					ScreenResolution: cmd.GetString("screen"),
					Timezone:         cmd.GetString("timezone"),
					Language:         cmd.GetString("language"),
					Platform:         cmd.GetString("platform"),
				}
			}

			var device model.Device
			if err := client.FromCommand(cmd).Post("/api/devices", req, &device); err != nil {
				return err
			}

			fmt.Printf("Device registered: %s (ID: %s, trust: %d)\n", device.Fingerprint, device.ID, device.TrustScore)
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Usage:       "Get a device",
		Description: "Get a device by fingerprint",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "fingerprint", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var device model.Device
			if err := client.FromCommand(cmd).Get("/api/devices/"+cmd.GetStringArg("fingerprint"), &device); err != nil {
				return err
			}
			return printDevice(&device)
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List a user's devices",
		Description: "List all devices owned by a user, most recently seen first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Usage: "Owning user identifier", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var devices []model.Device
			path := "/api/devices?owner=" + url.QueryEscape(cmd.GetString("owner"))
			if err := client.FromCommand(cmd).Get(path, &devices); err != nil {
				return err
			}
			return printDevices(devices)
		},
	}
}

func trustSetCommand() *cli.Command {
	return &cli.Command{
		Name:        "trust-set",
		Usage:       "Set a device's trust score",
		Description: "Set the trust score for a device (clamped to 0-100)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "fingerprint", Required: true},
			&cli.StringArg{Name: "score", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			score, err := strconv.Atoi(cmd.GetStringArg("score"))
			if err != nil {
				return fmt.Errorf("score must be an integer")
			}

			var device model.Device
			path := "/api/devices/" + cmd.GetStringArg("fingerprint") + "/trust"
			if err := client.FromCommand(cmd).Post(path, map[string]int{"score": score}, &device); err != nil {
				return err
			}

			fmt.Printf("Trust score is now %d\n", device.TrustScore)
			return nil
		},
	}
}

func trustIncreaseCommand() *cli.Command {
	return adjustCommand("trust-increase", "Increase a device's trust score", "increase")
}

func trustDecreaseCommand() *cli.Command {
	return adjustCommand("trust-decrease", "Decrease a device's trust score", "decrease")
}

func adjustCommand(name, usage, endpoint string) *cli.Command {
	return &cli.Command{
		Name:        name,
		Usage:       usage,
		Description: usage + " (omit --delta for the default step)",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "fingerprint", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "delta", Usage: "Score delta (positive integer)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]any{}
			if raw := cmd.GetString("delta"); raw != "" {
				delta, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("delta must be an integer")
				}
				req["delta"] = delta
			}

			var result struct {
				TrustScore int `json:"trust_score"`
			}
			path := "/api/devices/" + cmd.GetStringArg("fingerprint") + "/trust/" + endpoint
			if err := client.FromCommand(cmd).Post(path, req, &result); err != nil {
				return err
			}

			fmt.Printf("Trust score is now %d\n", result.TrustScore)
			return nil
		},
	}
}

func compromiseCommand() *cli.Command {
	return &cli.Command{
		Name:        "compromise",
		Usage:       "Mark a device as compromised",
		Description: "Mark a device COMPROMISED and revoke all of its sessions",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "fingerprint", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var device model.Device
			path := "/api/devices/" + cmd.GetStringArg("fingerprint") + "/compromise"
			if err := client.FromCommand(cmd).Post(path, map[string]any{}, &device); err != nil {
				return err
			}

			fmt.Printf("Device %s marked COMPROMISED; sessions revoked\n", device.Fingerprint)
			return nil
		},
	}
}

func trustedCommand() *cli.Command {
	return &cli.Command{
		Name:        "trusted",
		Usage:       "Check whether a device is trusted",
		Description: "Check a device against a minimum trust score",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "fingerprint", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "min", Usage: "Minimum trust score (default 50)"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			path := "/api/devices/" + cmd.GetStringArg("fingerprint") + "/trusted"
			if min := cmd.GetString("min"); min != "" {
				path += "?min=" + url.QueryEscape(min)
			}

			var result struct {
				Trusted bool `json:"trusted"`
			}
			if err := client.FromCommand(cmd).Get(path, &result); err != nil {
				return err
			}

			if result.Trusted {
				fmt.Println("trusted")
			} else {
				fmt.Println("not trusted")
			}
			return nil
		},
	}
}

func printDevices(devices []model.Device) error {
	if !client.Interactive() {
		return client.PrintJSON(devices)
	}
	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\t%d\t%s\n", d.Fingerprint, d.Status, d.TrustScore, d.Name)
	}
	return nil
}

func printDevice(device *model.Device) error {
	if !client.Interactive() {
		return client.PrintJSON(device)
	}
	fmt.Printf("Fingerprint: %s\n", device.Fingerprint)
	fmt.Printf("ID:          %s\n", device.ID)
	fmt.Printf("Name:        %s\n", device.Name)
	fmt.Printf("Owner:       %s\n", device.Owner)
	fmt.Printf("Trust score: %d\n", device.TrustScore)
	fmt.Printf("Status:      %s\n", device.Status)
	fmt.Printf("Last seen:   %s\n", device.LastSeen.Format("2006-01-02 15:04:05"))
	return nil
}
