// Command clientctl manages the API client accounts that cmd/api
// authenticates against. Deployments use it to seed their first
// automation client before any token can be issued.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"refundflow/auth"
	"refundflow/db"
)

func main() {
	id := flag.String("id", "", "client id (required)")
	name := flag.String("name", "", "client display name (required)")
	role := flag.String("role", string(auth.RoleAutomation), "client role: automation, reviewer or admin")
	secret := flag.String("secret", "", "client secret; generated and printed when empty")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	svc := auth.NewService(auth.NewRepository(pool), os.Getenv("JWT_SECRET"))
	client, plainSecret, err := registerClient(ctx, svc, registration{
		ID:     *id,
		Name:   *name,
		Role:   auth.Role(*role),
		Secret: *secret,
	})
	if err != nil {
		log.Fatalf("register client: %v", err)
	}

	fmt.Printf("registered client %s (%s) with role %s\n", client.ID, client.Name, client.Role)
	if *secret == "" {
		fmt.Printf("generated secret: %s\n", plainSecret)
	}
}

// registration carries the registration inputs after flag parsing.
type registration struct {
	ID     string
	Name   string
	Role   auth.Role
	Secret string
}

// registerClient registers an API client, generating a random secret
// when none was supplied. The plaintext secret is returned so the
// caller can hand it to the client; only the hash is stored.
func registerClient(ctx context.Context, svc *auth.Service, reg registration) (auth.Client, string, error) {
	secret := reg.Secret
	if secret == "" {
		var err error
		secret, err = generateSecret()
		if err != nil {
			return auth.Client{}, "", err
		}
	}

	client, err := svc.RegisterClient(ctx, reg.ID, reg.Name, secret, reg.Role)
	if err != nil {
		return auth.Client{}, "", err
	}
	return client, secret, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
