// Package segment provides the network segment CLI commands.
package segment

import (
	"context"
	"fmt"

	"github.com/paularlott/cli"
	"github.com/trustd/trustd/cmd/client"
	"github.com/trustd/trustd/internal/model"
)

func Commands() []*cli.Command {
	return []*cli.Command{
		createCommand(),
		listCommand(),
		getCommand(),
		updateCommand(),
		deleteCommand(),
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:        "create",
		Usage:       "Create a network segment",
		Description: "Create a named network segment with a CIDR range",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Segment name", Required: true},
			&cli.StringFlag{Name: "cidr", Usage: "Segment CIDR, e.g. 10.0.1.0/24", Required: true},
			&cli.StringFlag{Name: "description", Usage: "Segment description"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]string{
				"name":        cmd.GetString("name"),
				"cidr":        cmd.GetString("cidr"),
				"description": cmd.GetString("description"),
			}

			var segment model.NetworkSegment
			if err := client.FromCommand(cmd).Post("/api/segments", req, &segment); err != nil {
				return err
			}

			fmt.Printf("Segment created: %s (ID: %s)\n", segment.Name, segment.ID)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:        "list",
		Usage:       "List network segments",
		Description: "List all network segments, newest first",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var segments []model.NetworkSegment
			if err := client.FromCommand(cmd).Get("/api/segments", &segments); err != nil {
				return err
			}

			if !client.Interactive() {
				return client.PrintJSON(segments)
			}
			if len(segments) == 0 {
				fmt.Println("No segments found")
				return nil
			}
			for _, s := range segments {
				fmt.Printf("%s\t%s\t%s\n", s.ID, s.Name, s.CIDR)
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:        "get",
		Usage:       "Get a network segment",
		Description: "Get a network segment by ID",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			var segment model.NetworkSegment
			if err := client.FromCommand(cmd).Get("/api/segments/"+cmd.GetStringArg("id"), &segment); err != nil {
				return err
			}

			if !client.Interactive() {
				return client.PrintJSON(segment)
			}
			fmt.Printf("ID:          %s\n", segment.ID)
			fmt.Printf("Name:        %s\n", segment.Name)
			fmt.Printf("CIDR:        %s\n", segment.CIDR)
			fmt.Printf("Description: %s\n", segment.Description)
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:        "update",
		Usage:       "Update a network segment",
		Description: "Update a segment's name, CIDR, or description",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Segment name"},
			&cli.StringFlag{Name: "cidr", Usage: "Segment CIDR"},
			&cli.StringFlag{Name: "description", Usage: "Segment description"},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			req := map[string]string{}
			for _, key := range []string{"name", "cidr", "description"} {
				if value := cmd.GetString(key); value != "" {
					req[key] = value
				}
			}

			var segment model.NetworkSegment
			if err := client.FromCommand(cmd).Put("/api/segments/"+cmd.GetStringArg("id"), req, &segment); err != nil {
				return err
			}

			fmt.Printf("Segment updated: %s\n", segment.Name)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:        "delete",
		Usage:       "Delete a network segment",
		Description: "Delete a segment and every policy referencing it",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id", Required: true},
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			if err := client.FromCommand(cmd).Delete("/api/segments/" + cmd.GetStringArg("id")); err != nil {
				return err
			}
			fmt.Println("Segment deleted")
			return nil
		},
	}
}
