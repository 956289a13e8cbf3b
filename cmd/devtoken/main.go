// devtoken issues a signed agent token for local runs against a server started
// with AUTH_JWT_SECRET set.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/omnichannel-support/internal/auth"
	"github.com/spec-kit/omnichannel-support/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		subject string
		email   string
		groups  []string
	)
	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVar(&subject, "subject", "dev-agent", "agent id placed in the sub claim")
	flagSet.StringVar(&email, "email", "", "agent email")
	flagSet.StringSliceVar(&groups, "groups", []string{cfg.Auth.AgentGroup}, "comma-separated groups claim")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is not set")
	}
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("--subject must not be empty")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(subject, email, groups)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
