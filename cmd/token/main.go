// Command token mints a bearer token for local development.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"libraryloans/internal/httpx"
	"libraryloans/internal/platform/config"
	"libraryloans/internal/platform/crypto"

	"github.com/caarlos0/env/v11"
)

type tokenConfig struct {
	Secret string `env:"JWT_SECRET,required"`
}

func main() {
	sub := flag.String("sub", "", "Patron id to put in the sub claim")
	admin := flag.Bool("admin", false, "Issue an ADMIN token")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	config.LoadEnvFiles()
	var cfg tokenConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := run(os.Stdout, cfg.Secret, *sub, *admin, *ttl); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, secret, sub string, admin bool, ttl time.Duration) error {
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return fmt.Errorf("-sub is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("-ttl must be positive")
	}
	role := "USER"
	if admin {
		role = httpx.RoleAdmin
	}

	token, jti, err := crypto.GenerateToken(secret, sub, role, ttl)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	log.Printf("level=info msg=\"token issued\" sub=%s role=%s jti=%s expires_in=%s", sub, role, jti, ttl)
	_, err = fmt.Fprintln(w, token)
	return err
}
