package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/auth"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
)

// runToken mints an API bearer token signed with the configured secret.
//
//	ampctl -config file token [-subject name] [-role viewer|operator|admin] [-ttl 15m]
func runToken(args []string, cfg config.APIConfig, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("subject", "ampctl", "Token subject, recorded as user_id on commands")
	role := fs.String("role", string(auth.RoleOperator), "viewer, operator or admin")
	ttl := fs.Duration("ttl", time.Duration(cfg.JWT.AccessTokenTTL)*time.Minute, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cfg.JWT.Secret == "" {
		return errors.New("api.jwt.secret is not configured; the API accepts any caller")
	}

	token, err := auth.GenerateAccessToken(*subject, auth.Role(*role), cfg.JWT.Secret, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
