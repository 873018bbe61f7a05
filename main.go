package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-availability/core/logger"
	"go-availability/core/server"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a config file (yaml); environment variables override it",
		EnvVars: []string{"AVAIL_CONFIG"},
	}

	app := &cli.App{
		Name:  "availability",
		Usage: "Group scheduling availability service.",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API.",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Value: true, Usage: "Apply pending migrations on startup."},
				},
				Action: func(c *cli.Context) error {
					return server.Run(c.Context, c.String("config"), c.Bool("migrate"))
				},
			},
			{
				Name:  "worker",
				Usage: "Process background export tasks.",
				Action: func(c *cli.Context) error {
					return server.RunWorker(c.Context, c.String("config"))
				},
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations.",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "down", Usage: "Roll back the last N migrations instead."},
				},
				Action: func(c *cli.Context) error {
					return server.Migrate(c.String("config"), c.Int("down"))
				},
			},
			{
				Name:  "token",
				Usage: "Print a signed bearer token for local testing.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Required: true, Usage: "Participant or organizer id."},
					&cli.StringFlag{Name: "name", Usage: "Display name claim."},
					&cli.StringFlag{Name: "email", Usage: "Email claim."},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
				},
				Action: func(c *cli.Context) error {
					token, err := server.MintToken(c.String("config"), c.String("subject"), c.String("name"), c.String("email"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error("run error", err)
		logger.Sync()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
