// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev contact (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"authcore/internal/config"
	"authcore/internal/db"
	"authcore/internal/security"
)

const (
	devEmail          = "dev@example.com"
	devPhone          = "+15550100001"
	devUsername       = "devuser"
	devPassword       = "password123"
	devUserID         = "dev-user-001"
	devContactID      = "dev-contact-001"
	devContact2ID     = "dev-contact-002"
	devDeviceID       = "dev-device-001"
	devUniqueDeviceID = "dev-unique-device-001"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var exists bool
	if err := conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contacts WHERE kind = 'EMAIL' AND value = $1 AND verified)`,
		devEmail,
	).Scan(&exists); err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if exists {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, logging_admin, restrictions, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'USER', FALSE, '[]', 'active', $4, $4)`,
		devUserID, devUsername, passwordHash, now,
	); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, kind, value, verified, is_default, label, position, created_at)
		VALUES ($1, $2, 'EMAIL', $3, TRUE, TRUE, 'primary', 0, $4)`,
		devContactID, devUserID, devEmail, now,
	); err != nil {
		log.Fatalf("create dev email contact: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, kind, value, verified, is_default, label, position, created_at)
		VALUES ($1, $2, 'PHONE', $3, TRUE, TRUE, 'mobile', 1, $4)`,
		devContact2ID, devUserID, devPhone, now,
	); err != nil {
		log.Fatalf("create dev phone contact: %v", err)
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO devices (id, user_id, unique_device_id, biometric_public_key, push_token, created_at, updated_at)
		VALUES ($1, $2, $3, '', '', $4, $4)`,
		devDeviceID, devUserID, devUniqueDeviceID, now,
	); err != nil {
		log.Fatalf("create dev device: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devEmail, devPassword)
	fmt.Printf("Dev login (username): %s / %s\n", devUsername, devPassword)
}
