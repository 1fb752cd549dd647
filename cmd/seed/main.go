// seed inserts a verified local-dev user with a known password.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/hashing"
	"github.com/ErlanBelekov/interview-genie/internal/infrastructure/postgres"
)

const (
	seedEmail    = "seed@test.local"
	seedPassword = "seed-password-123"
	seedName     = "Seed User"

	seedBcryptCost = 12
)

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL, postgres.PoolOptions{AppName: "interview-genie-seed", MaxConns: 1})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		log.Fatalf("migrate: %v", err)
	}

	hash, err := hashing.NewBcrypt(seedBcryptCost).Hash(seedPassword)
	if err != nil {
		pool.Close()
		log.Fatalf("hash password: %v", err)
	}

	users := postgres.NewUserRepository(pool)
	name := seedName
	user, err := users.Create(ctx, &domain.User{
		Email:              seedEmail,
		Name:               &name,
		HashedPassword:     &hash,
		Credits:            domain.DefaultCredits,
		SubscriptionStatus: domain.SubscriptionFree,
	})
	if errors.Is(err, domain.ErrEmailTaken) {
		// re-runs reset the password of the existing seed user
		user, err = users.FindByEmail(ctx, seedEmail)
		if err == nil {
			err = users.UpdatePasswordHash(ctx, user.ID, hash)
		}
	}
	if err != nil {
		pool.Close()
		log.Fatalf("upsert user: %v", err)
	}

	// signup always creates unverified users; the seed user skips the OTP step
	if _, err := pool.Exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, user.ID); err != nil {
		pool.Close()
		log.Fatalf("verify user: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  User:     %s\n", seedEmail)
	fmt.Printf("  Password: %s\n", seedPassword)
	fmt.Printf("  User ID:  %s\n", user.ID)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1: log in:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth/login \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", seedEmail, seedPassword)
	fmt.Println("    # → {\"token\":\"eyJ...\",\"user\":{...}}")
	fmt.Println()
	fmt.Println("  Step 2: read the profile:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Printf("    curl -s http://localhost:8080/users/%s -H \"Authorization: Bearer $JWT\"\n", user.ID)
	fmt.Println()
	fmt.Println("  Step 3: request a password reset (the link is logged by the server in ENV=local):")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth/forgot-password \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' -d '{\"email\":\"%s\"}'\n", seedEmail)
}
