// Package policy provides the isolation policy CLI commands.
package policy

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paularlott/cli"
	"github.com/trustd/trustd/cmd/client"
	"github.com/trustd/trustd/internal/model"
)

func Commands() []*cli.Command {
	return []*cli.Command{
		createCommand(),
		listCommand(),
		getCommand(),
		deleteCommand(),
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:        "create",
		Usage:       "Create an isolation policy",
		Description: "Create a directional policy between two segments. At most one policy per ordered pair.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Source segment ID", Required: true},
			&cli.StringFlag{Name: "destination", Usage: "Destination segment ID", Required: true},
			&cli.StringFlag{Name: "action", Usage: "ALLOW or DENY", DefaultValue: "ALLOW"},
			&cli.StringFlag{Name: "min-trust", Usage: "Minimum device trust score condition"},
			&cli.StringFlag{Name: "roles", Usage: "Comma-separated allowed roles"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]any{
				"source_segment_id":      cmd.GetString("source"),
				"destination_segment_id": cmd.GetString("destination"),
				"action":                 strings.ToUpper(cmd.GetString("action")),
			}

			conditions := model.PolicyConditions{}
			set := false
			if raw := cmd.GetString("min-trust"); raw != "" {
				score, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("min-trust must be an integer")
				}
				conditions.MinTrustScore = &score
				set = true
			}
			if roles := parseList(cmd.GetString("roles")); len(roles) > 0 {
				conditions.AllowedRoles = roles
				set = true
			}
			if set {
				req["conditions"] = conditions
			}

			var policy model.IsolationPolicy
			if err := client.FromCommand(cmd).Post("/api/policies", req, &policy); err != nil {
				return err
			}

			fmt.Printf("Policy created: %s (%s -> %s, %s)\n", policy.ID, policy.SourceSegmentID, policy.DestinationSegmentID, policy.Action)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List isolation policies",
		Description: "List all policies, optionally filtered to an exact ordered segment pair",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Usage: "Source segment ID filter"},
			&cli.StringFlag{Name: "destination", Usage: "Destination segment ID filter"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			path := "/api/policies"
			source := cmd.GetString("source")
			destination := cmd.GetString("destination")
			if source != "" && destination != "" {
				path += "?source=" + url.QueryEscape(source) + "&destination=" + url.QueryEscape(destination)
			}

			var policies []model.IsolationPolicy
			if err := client.FromCommand(cmd).Get(path, &policies); err != nil {
				return err
			}

			if !client.Interactive() {
				return client.PrintJSON(policies)
			}
			if len(policies) == 0 {
				fmt.Println("No policies found")
				return nil
			}
			for _, p := range policies {
				fmt.Printf("%s\t%s -> %s\t%s\n", p.ID, p.SourceSegmentID, p.DestinationSegmentID, p.Action)
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Usage:       "Get an isolation policy",
		Description: "Get a policy by ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var policy model.IsolationPolicy
			if err := client.FromCommand(cmd).Get("/api/policies/"+cmd.GetStringArg("id"), &policy); err != nil {
				return err
			}

			if !client.Interactive() {
				return client.PrintJSON(policy)
			}
			fmt.Printf("ID:        %s\n", policy.ID)
			fmt.Printf("Direction: %s -> %s\n", policy.SourceSegmentID, policy.DestinationSegmentID)
			fmt.Printf("Action:    %s\n", policy.Action)
			if policy.Conditions != nil {
				if policy.Conditions.MinTrustScore != nil {
					fmt.Printf("Min trust: %d\n", *policy.Conditions.MinTrustScore)
				}
				if len(policy.Conditions.AllowedRoles) > 0 {
					fmt.Printf("Roles:     %s\n", strings.Join(policy.Conditions.AllowedRoles, ", "))
				}
			}
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete an isolation policy",
		Description: "Delete a policy by ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := client.FromCommand(cmd).Delete("/api/policies/" + cmd.GetStringArg("id")); err != nil {
				return err
			}
			fmt.Println("Policy deleted")
			return nil
		},
	}
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
