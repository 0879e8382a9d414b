// Command token mints an access token for an operator or a test customer.
//
//	token -user admin-1 -email ops@example.com -role admin -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/weddify/binks/internal/auth"
	"github.com/weddify/binks/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id carried in the token (required)")
	email := flag.String("email", "", "email carried in the token")
	role := flag.String("role", auth.RoleCustomer, "role: admin or customer")
	ttl := flag.Duration("ttl", auth.DefaultTokenExpiry, "token lifetime")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Token] Invalid configuration: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[Token] %v", err)
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWTSecret, auth.DefaultTokenExpiry).
		GenerateAccessToken(*userID, *email, *role, *ttl)
	if err != nil {
		log.Fatalf("[Token] %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
