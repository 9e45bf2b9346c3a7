package main

import (
	"fmt"
	"log"
	"os"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "facility-desk",
		Usage: "Maintenance and IT ticket service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API and notification workers",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
			{
				Name:  "create-user",
				Usage: "Create a portal account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "email", Required: true, Usage: "Email address"},
					&cli.StringFlag{Name: "role", Value: "COMMON", Usage: "COMMON, TECHNICIAN, MANAGER or SUPER_ADMIN"},
					&cli.StringFlag{Name: "area", Usage: "Area code (IT, BUILDING, ELECTRICAL)"},
				},
				Action: runCreateUser,
			},
			{
				Name:  "issue-token",
				Usage: "Print a bearer token for an existing user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Required: true, Usage: "User id"},
				},
				Action: runIssueToken,
			},
			{
				Name:  "vapid-keys",
				Usage: "Generate a VAPID key pair for web push",
				Action: func(c *cli.Context) error {
					privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
					if err != nil {
						return fmt.Errorf("generate vapid keys: %w", err)
					}
					fmt.Fprintf(c.App.Writer, "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
					return nil
				},
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("facility-desk: %v", err)
	}
}
