// Command gastos-token signs a bearer token for local use of the API.
//
//	gastos-token --sub demo-user --ttl 24h
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"gastos/internal/auth"
	appcli "gastos/internal/cli"
	"gastos/internal/config"
)

func main() {
	app := &cli.App{
		Name:  "gastos-token",
		Usage: "sign a bearer token with JWT_SECRET",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sub", Usage: "owner id placed in the sub claim", Required: true},
			&cli.StringFlag{Name: "email", Usage: "optional email claim"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: 24 * time.Hour},
		},
		Action: issue,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gastos-token: %v\n", err)
		os.Exit(1)
	}
}

func issue(c *cli.Context) error {
	ttl := c.Duration("ttl")
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	appcli.LoadEnvFile()
	cfg := config.Load()

	v, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return err
	}
	token, err := v.Issue(c.String("sub"), c.String("email"), ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
