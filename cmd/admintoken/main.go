// Command admintoken mints a bearer token for the admin read endpoints using
// the same signing configuration as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "attendance/internal/jwt_token"
	"attendance/internal/platform/config"
)

func main() {
	subject := flag.String("subject", "", "who the token is issued to (required)")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "admintoken: -subject is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: load config: %v\n", err)
		os.Exit(1)
	}

	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := svc.GenerateAdminToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
