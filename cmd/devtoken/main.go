// Command devtoken signs a bearer token with the configured JWT secret for local testing.
//
//	go run ./cmd/devtoken -sub tech-1 -role technician -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/infra/config"
	"github.com/arklim/maintenance-service/internal/infra/security"
)

func main() {
	subject := flag.String("sub", "", "actor id (token subject)")
	rawRole := flag.String("role", string(domain.RoleUser), "admin, technician, client or user")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	role, err := domain.ParseRole(*rawRole)
	if err != nil {
		log.Fatalf("invalid role: %v", err)
	}

	verifier, err := security.NewTokenVerifier(cfg.JWT)
	if err != nil {
		log.Fatalf("failed to init verifier: %v", err)
	}

	actor := domain.Actor{ID: *subject, Role: role}
	if *email != "" {
		actor.Email = email
	}

	token, err := verifier.Issue(actor, *ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
}
