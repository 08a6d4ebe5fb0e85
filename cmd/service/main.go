package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/linkpass/internal/cache"
	cachemem "github.com/dropDatabas3/linkpass/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/linkpass/internal/cache/redis"
	"github.com/dropDatabas3/linkpass/internal/config"
	httpx "github.com/dropDatabas3/linkpass/internal/http"
	"github.com/dropDatabas3/linkpass/internal/http/handlers"
	"github.com/dropDatabas3/linkpass/internal/login"
	"github.com/dropDatabas3/linkpass/internal/observability/logger"
	"github.com/dropDatabas3/linkpass/internal/provider"
	"github.com/dropDatabas3/linkpass/internal/rate"
	"github.com/dropDatabas3/linkpass/internal/store/pg"
	"github.com/dropDatabas3/linkpass/internal/token"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
	)
	flag.Parse()

	if *flagEnvFile != "" && fileExists(*flagEnvFile) {
		_ = godotenv.Load(*flagEnvFile)
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		if fileExists("configs/config.yaml") {
			cfgPath = "configs/config.yaml"
		} else if fileExists("configs/config.example.yaml") {
			cfgPath = "configs/config.example.yaml"
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		// logger todavía no inicializado
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "linkpass"})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx := context.Background()

	// ─── Store ───
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		log.Fatal("storage.dsn vacío (o LINKPASS_DSN)")
	}
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("store open", logger.Err(err))
	}
	defer store.Close()

	if cfg.Flags.Migrate {
		if err := store.RunMigrations(ctx); err != nil {
			log.Fatal("migrations", logger.Err(err))
		}
	}

	// ─── Cache + rate limit ───
	var (
		cc        cache.Cache
		limiter   rate.Limiter
		redisPing func(context.Context) error
	)
	if strings.EqualFold(cfg.Cache.Kind, "redis") {
		rc := rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		cc = cacheredis.New(rc, cfg.Cache.Redis.Prefix)
		redisPing = func(ctx context.Context) error { return rc.Ping(ctx).Err() }

		if cfg.Rate.Enabled {
			win := config.Duration(cfg.Rate.Login.Window, time.Minute)
			limiter = rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Login.Limit, win)
		}
	} else {
		cc = cachemem.New(config.Duration(cfg.Cache.Memory.DefaultTTL, 30*time.Second))
		if cfg.Rate.Enabled {
			log.Warn("rate limit habilitado pero cache.kind != redis: queda apagado")
		}
	}

	// ─── Tokens ───
	handoffTTL := config.Duration(cfg.Handoff.TTL, 5*time.Minute)
	handoffSkew := config.Duration(cfg.Handoff.Skew, 5*time.Minute)
	issuer := token.NewIssuer([]byte(cfg.Handoff.Secret), cfg.Handoff.Issuer, cfg.Handoff.Audience, handoffTTL)
	verifier := token.NewVerifier([]byte(cfg.Handoff.Secret), cfg.Handoff.Issuer, cfg.Handoff.Audience, handoffSkew)

	sessionSecret := cfg.Session.Secret
	if sessionSecret == "" {
		// Dev fallback. En prod conviene un secreto propio para la sesión.
		sessionSecret = cfg.Handoff.Secret
		log.Warn("session.secret vacío: usando handoff.secret")
	}
	sessions := token.NewSessions([]byte(sessionSecret), cfg.Handoff.Issuer, config.Duration(cfg.Session.TTL, 24*time.Hour))

	// ─── Servicios ───
	creds := &login.StoreVerifier{Users: store.Users}
	loginSvc := login.New(login.Options{
		Users:     store.Users,
		Providers: store.Prov,
		Creds:     creds,
		Issuer:    issuer,
		Verifier:  verifier,
		Cache:     cc,
		CacheTTL:  config.Duration(cfg.Cache.Memory.DefaultTTL, 30*time.Second),
		ParamName: cfg.Handoff.ParamName,
	})
	providerSvc := provider.New(store.Prov, cc)

	// ─── Router ───
	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{Pool: store.Pool})
	if err != nil {
		log.Fatal("metrics", logger.Err(err))
	}

	r := chi.NewRouter()
	handlers.NewLoginHandler(loginSvc, sessions).Register(r)
	handlers.NewSessionHandler(creds, sessions).Register(r)
	handlers.NewFingerprintHandler(providerSvc, cfg.Admin.APIKey).Register(r)
	handlers.NewHealthHandler(map[string]func(context.Context) error{
		"db":    store.Ping,
		"redis": redisPing,
	}).Register(r)
	r.Handle("/metrics", metricsHandler)

	handler := httpx.WithLogging(
		httpx.WithRecover(
			httpx.WithRequestID(
				httpx.WithMetrics(
					httpx.WithRateLimit(
						httpx.WithSecurityHeaders(
							httpx.WithCORS(r, cfg.Server.CORSAllowedOrigins),
						),
						limiter,
					),
				),
			),
		),
	)

	srv := httpx.NewServer(cfg.Server.Addr, handler)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("service up",
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", cfg.App.Env),
			zap.String("cache", cfg.Cache.Kind))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return httpx.Shutdown(srv, 10*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("service", logger.Err(err))
	}
}
