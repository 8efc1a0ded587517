// Command admintoken prints a bearer token for the admin api.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"line-relay/internal/config"
	"line-relay/internal/pkg/jwtutil"
)

func main() {
	subject := flag.String("subject", "admin", "operator name stored in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (default ADMIN_JWT_EXPIRE_MINUTE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if !cfg.AdminEnabled() {
		fmt.Fprintln(os.Stderr, "ADMIN_JWT_SECRET is not set")
		os.Exit(1)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.AdminTokenTTL()
	}
	expiresAt := time.Now().Add(lifetime)

	token, err := jwtutil.GenerateToken(cfg.Admin.JWTSecret, *subject, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
