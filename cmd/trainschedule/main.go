package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	adapthttp "trainschedule/internal/adapter/http"
	"trainschedule/internal/adapter/memory"
	"trainschedule/internal/adapter/postgres"
	"trainschedule/internal/app"
	"trainschedule/internal/config"
	"trainschedule/internal/domain"
	"trainschedule/internal/telemetry"
)

const serviceName = "trainschedule"

// store is what the services need from a persistence adapter.
type store interface {
	domain.StationRepository
	domain.ScheduleRepository
	domain.UserRepository
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg)

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var (
		db       store
		sessions domain.SessionRepository
		ready    func(context.Context) error
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()
		db, sessions, ready = pg, postgres.NewSessionRepo(pg), pg.Ping
		log.Info().Msg("using postgres storage")
	} else {
		mem := memory.New()
		db, sessions = mem, mem.NewSessionRepo()
		log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	issuer := app.NewTokenIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authSvc := app.NewAuthService(db, sessions, issuer, cfg.BcryptCost)
	stationSvc := app.NewStationService(db, db)
	scheduleSvc := app.NewScheduleService(db, db, app.NewMetrics(reg))

	if cfg.SeedStations {
		n, err := stationSvc.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info().Int("stations", n).Msg("seeded default stations")
		}
	}

	users, stations, err := inventory(ctx, db)
	if err != nil {
		return err
	}
	log.Info().Int("users", users).Int("stations", stations).Msg("storage ready")

	opts := adapthttp.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AuthRateLimit:  cfg.AuthRateLimit,
		FrontendURL:    cfg.FrontendURL,
		Registry:       reg,
		Logger:         log.Logger,
		Ready:          ready,
	}
	if cfg.SSOEnabled() {
		oidc, err := adapthttp.NewOIDC(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL)
		if err != nil {
			return err
		}
		opts.OIDC = oidc
		log.Info().Str("issuer", cfg.OIDCIssuer).Msg("single sign-on enabled")
	}

	go pruneSessions(ctx, authSvc, time.Hour)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adapthttp.New(authSvc, stationSvc, scheduleSvc, opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// inventory reports how many users and stations the store holds.
func inventory(ctx context.Context, db store) (users, stations int, err error) {
	if users, err = db.Count(ctx); err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	if stations, err = db.CountStations(ctx); err != nil {
		return 0, 0, fmt.Errorf("count stations: %w", err)
	}
	return users, stations, nil
}

func pruneSessions(ctx context.Context, auth *app.AuthService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := auth.PruneExpiredSessions(ctx)
			if err != nil {
				log.Error().Err(err).Msg("prune sessions")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("pruned expired sessions")
			}
		}
	}
}
