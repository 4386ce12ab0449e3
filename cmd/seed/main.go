package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/lumenshop/storefront/config"
	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	phone := "+989123456789"
	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (phone, password_hash, first_name, last_name, role, mobile_verified)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (phone) DO UPDATE SET role = EXCLUDED.role
		RETURNING id
	`, phone, hash, "Store", "Admin", entity.RoleAdmin.String()).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	fmt.Printf("seeded admin: id=%s phone=%s password=%s\n", id, phone, password)
}
