// seed inserts a development user for local testing.
// Idempotent: skips the insert if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"filevault/backend/internal/config"
	"filevault/backend/internal/db"
	"filevault/backend/internal/security"
	userdomain "filevault/backend/internal/user/domain"
	userrepo "filevault/backend/internal/user/repository"
)

const (
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, db.PoolConfig{
		DSN:        cfg.DatabaseURL,
		MaxConns:   2,
		Retries:    cfg.DBConnectRetries,
		RetryDelay: cfg.ConnectDelay(),
	})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", devUserEmail)
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	err = users.Create(ctx, &userdomain.User{
		ID:           uuid.New().String(),
		Email:        devUserEmail,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Fatalf("create dev user: %v", err)
	}
	log.Printf("Seeded %s / %s", devUserEmail, devPassword)
}
