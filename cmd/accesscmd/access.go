// Package accesscmd provides the access evaluation CLI commands.
package accesscmd

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
		evaluateCommand(),
		violationsCommand(),
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:        "evaluate",
		Usage:       "Evaluate segment-to-segment access",
		Description: "Evaluate whether traffic from one segment to another is allowed. No policy means DENY.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Source segment ID", Required: true},
			&cli.StringFlag{Name: "destination", Usage: "Destination segment ID", Required: true},
			&cli.StringFlag{Name: "user", Usage: "Requesting user ID"},
			&cli.StringFlag{Name: "trust-score", Usage: "Device trust score of the requester"},
			&cli.BoolFlag{Name: "log-violation", Usage: "Record a violation if denied"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]any{
				"source_segment_id":      cmd.GetString("source"),
				"destination_segment_id": cmd.GetString("destination"),
			}
			if user := cmd.GetString("user"); user != "" {
				req["user_id"] = user
			}
			if raw := cmd.GetString("trust-score"); raw != "" {
				score, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("trust-score must be an integer")
				}
				req["device_trust_score"] = score
			}
			if cmd.GetBool("log-violation") {
				req["log_violation"] = true
			}

			var decision struct {
				Allowed  bool   `json:"allowed"`
				Reason   string `json:"reason"`
				PolicyID string `json:"policy_id,omitempty"`
			}
			if err := client.FromCommand(cmd).Post("/api/access/evaluate", req, &decision); err != nil {
				return err
			}

			if !client.Interactive() {
				return client.PrintJSON(decision)
			}
			verdict := "DENY"
			if decision.Allowed {
				verdict = "ALLOW"
			}
			fmt.Printf("%s: %s\n", verdict, decision.Reason)
			if decision.PolicyID != "" {
				fmt.Printf("Policy: %s\n", decision.PolicyID)
			}
			return nil
		},
	}
}

func violationsCommand() *cli.Command {
	return &cli.Command{
		Name:        "violations",
		Usage:       "List recorded access violations",
		Description: "List recent access violations, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "limit", Usage: "Maximum number of entries"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			path := "/api/access/violations"
			if limit := cmd.GetString("limit"); limit != "" {
				path += "?limit=" + url.QueryEscape(limit)
			}

			var violations []model.ViolationLog
			if err := client.FromCommand(cmd).Get(path, &violations); err != nil {
				return err
			}

			if !client.Interactive() {
				return client.PrintJSON(violations)
			}
			if len(violations) == 0 {
				fmt.Println("No violations recorded")
				return nil
			}
			for _, v := range violations {
				fmt.Printf("%s\t%s -> %s\tuser=%s\n", v.Timestamp.Format("2006-01-02 15:04:05"), v.SourceSegmentID, v.DestinationSegmentID, v.UserID)
			}
			return nil
		},
	}
}
