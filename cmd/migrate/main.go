// Command migrate applies the embedded schema migrations.
//
// Usage: migrate [up|down]
package main

import (
	"errors"
	"log"
	"os"

	"specsync/internal/config"
	"specsync/internal/db/migrate"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	if direction != "up" && direction != "down" {
		log.Fatalf("usage: migrate [up|down]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL must be set")
	}

	if err := migrate.Run(cfg.DatabaseURL, direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("no pending migrations")
			return
		}
		log.Fatalf("migrate %s: %v", direction, err)
	}
	log.Printf("migrations applied (%s)", direction)
}
