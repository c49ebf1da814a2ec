package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/config"
	"github.com/sudo-init-do/gighub/internal/db"
	"github.com/sudo-init-do/gighub/internal/models"
)

// set_role switches an account between client and freelancer by email.
// Usage:
//
//	go run ./cmd/adminutil/set_role -email user@example.com -role freelancer
func main() {
	email := flag.String("email", "", "Email of the user to update")
	role := flag.String("role", models.RoleFreelancer, "New role: client or freelancer")
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/set_role -email user@example.com -role freelancer")
	}
	if *role != models.RoleClient && *role != models.RoleFreelancer {
		log.Fatalf("role must be %q or %q", models.RoleClient, models.RoleFreelancer)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer pool.Close()

	ct, err := pool.Exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE email = $2`, *role, *email)
	if err != nil {
		log.Fatalf("failed to update role: %v", err)
	}
	if ct.RowsAffected() == 0 {
		log.Fatalf("no user found with email: %s", *email)
	}

	fmt.Printf("User %s is now a %s.\n", *email, *role)
}
