// seed crea datos demo: un usuario activo, un provider con login habilitado
// y un fingerprint. Imprime el secreto generado (única vez).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/linkpass/internal/config"
	"github.com/dropDatabas3/linkpass/internal/observability/logger"
	"github.com/dropDatabas3/linkpass/internal/provider"
	"github.com/dropDatabas3/linkpass/internal/security/password"
	"github.com/dropDatabas3/linkpass/internal/store/core"
	"github.com/dropDatabas3/linkpass/internal/store/pg"
)

func strEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load(".env")

	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "seed"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("seed")

	ctx := context.Background()
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{MaxOpenConns: 2})
	if err != nil {
		log.Fatal("store open", logger.Err(err))
	}
	defer store.Close()

	if err := store.RunMigrations(ctx); err != nil {
		log.Fatal("migrations", logger.Err(err))
	}

	email := strEnv("SEED_EMAIL", "demo@linkpass.dev")
	plain := strEnv("SEED_PASSWORD", "demo-password-1")

	hash, err := password.Hash(password.Default, plain)
	if err != nil {
		log.Fatal("hash", logger.Err(err))
	}

	userID := uuid.NewString()
	err = store.Users.CreateUser(ctx, core.User{
		ID:           userID,
		Email:        strings.ToLower(email),
		Status:       core.UserActive,
		PasswordHash: hash,
		FirstName:    "Demo",
		LastName:     "User",
	})
	switch {
	case errors.Is(err, core.ErrConflict):
		log.Info("user already seeded", logger.Email(email))
	case err != nil:
		log.Fatal("create user", logger.Err(err))
	default:
		log.Info("user created", logger.UserID(userID), logger.Email(email))
	}

	providerID := strEnv("SEED_PROVIDER_ID", uuid.NewString())
	err = store.Prov.CreateProvider(ctx, core.Provider{
		ID:               providerID,
		Name:             "Demo Partner",
		Slug:             "demo-partner",
		Owner:            core.ProviderOwner{ID: uuid.NewString(), Name: "Demo Owner", Email: "owner@linkpass.dev"},
		State:            true,
		IsLoginEnabled:   true,
		LoginRedirectURL: strEnv("SEED_REDIRECT_URL", "http://localhost:3000/callback"),
		DefaultRoles:     []string{"member"},
	})
	switch {
	case errors.Is(err, core.ErrConflict):
		log.Info("provider already seeded", logger.ProviderID(providerID))
	case err != nil:
		log.Fatal("create provider", logger.Err(err))
	default:
		log.Info("provider created", logger.ProviderID(providerID))
	}

	fp, err := provider.New(store.Prov, nil).CreateFingerprint(ctx, providerID, "main", "localhost")
	switch {
	case errors.Is(err, provider.ErrNameExists):
		log.Info("fingerprint already seeded", logger.ProviderID(providerID))
	case err != nil:
		log.Fatal("create fingerprint", logger.Err(err))
	default:
		// Única vez que el secreto sale completo.
		fmt.Printf("provider_id=%s\nfingerprint_name=%s\nfingerprint_secret=%s\n",
			providerID, fp.Name, fp.Secret)
	}
}
