// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the demo admin (admin@ticketflow.dev) already
// exists. Seeding is an explicit operator action; nothing in the server falls
// back to these accounts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"ticketflow/backend/internal/config"
	"ticketflow/backend/internal/db"
	"ticketflow/backend/internal/security"
)

const (
	adminEmail     = "admin@ticketflow.dev"
	organizerEmail = "organizer@ticketflow.dev"
	attendeeEmail  = "attendee@ticketflow.dev"
	demoPassword   = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var exists bool
	err = database.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, adminEmail).Scan(&exists)
	if err != nil {
		log.Fatalf("seed: check existing: %v", err)
	}
	if exists {
		log.Printf("seed: %s already present, nothing to do", adminEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(demoPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	adminID := uuid.New().String()
	organizerID := uuid.New().String()
	attendeeID := uuid.New().String()
	now := time.Now().UTC()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("seed: begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertUser := func(id, email, name, role string) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name, password_hash, role, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'active', $6, $6)`,
			id, email, name, hash, role, now)
		if err != nil {
			log.Fatalf("seed: insert %s: %v", email, err)
		}
	}
	insertUser(adminID, adminEmail, "Demo Admin", "admin")
	insertUser(organizerID, organizerEmail, "Demo Organizer", "organizer")
	insertUser(attendeeID, attendeeEmail, "Demo Attendee", "attendee")

	insertEvent := func(title, venue string, daysOut int, published bool) {
		starts := now.Add(time.Duration(daysOut) * 24 * time.Hour)
		var publishedAt *time.Time
		if published {
			publishedAt = &now
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, organizer_id, title, description, venue, starts_at, ends_at,
			                    capacity, price_cents, published, published_at, created_at, updated_at)
			VALUES ($1, $2, $3, '', $4, $5, $6, 200, 2500, $7, $8, $9, $9)`,
			uuid.New().String(), organizerID, title, venue, starts, starts.Add(3*time.Hour),
			published, publishedAt, now)
		if err != nil {
			log.Fatalf("seed: insert event %q: %v", title, err)
		}
	}
	insertEvent("Launch Night", "Warehouse 12", 7, true)
	insertEvent("Acoustic Sessions", "Riverside Hall", 14, true)
	insertEvent("Unannounced Secret Show", "TBD", 30, false)

	if err := tx.Commit(); err != nil {
		log.Fatalf("seed: commit: %v", err)
	}
	log.Printf("seed: created %s / %s / %s (password %q) and 3 events",
		adminEmail, organizerEmail, attendeeEmail, demoPassword)
}
