// Command admintoken prints an admin bearer token for the key management and
// audio cleanup routes, signed with the configured auth.admin_jwt_secret.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"

	"gopherai-insect/internal/config"
	"gopherai-insect/internal/pkg/jwtutil"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("admintoken: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	subject := fs.StringP("subject", "s", "operator", "token subject")
	ttl := fs.DurationP("ttl", "t", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if cfg.Auth.AdminJWTSecret == "" {
		return fmt.Errorf("auth.admin_jwt_secret is not set; admin routes are open")
	}

	token, err := jwtutil.GenerateToken(cfg.Auth.AdminJWTSecret, *subject, jwtutil.RoleAdmin, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
