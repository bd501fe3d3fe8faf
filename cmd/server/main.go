package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"tabula/internal/api"
	"tabula/internal/config"
	"tabula/internal/pg"
	"tabula/internal/record"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	zerolog.SetGlobalLevel(cfg.Level())
	if cfg.Level() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	storage, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("setting up storage")
	}
	defer closeStore()

	if _, err := storage.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("loading seed")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(api.Collectors()...)

	server := http.Server{
		Addr:    net.JoinHostPort("", cfg.Port),
		Handler: api.NewRouter(storage, reg),
	}

	go func() {
		log.Info().Str("addr", server.Addr).Bool("memory", cfg.Memory()).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("serving")
		}
	}()
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}
}

// openStorage returns the in-process stores when no database is configured,
// otherwise the Postgres store, migrated first when auto_migrate is set.
func openStorage(ctx context.Context, cfg config.Config, log zerolog.Logger) (*api.Storage, func(), error) {
	if cfg.Memory() {
		s := api.NewMemoryStorage(log)
		s.SeedDir, s.DashboardsDir = cfg.SeedDir, cfg.DashboardsDir
		return s, func() {}, nil
	}

	db, err := pg.Open(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	hub := record.NewHub(0)
	store := pg.NewStore(db, hub)
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, log.With().Str("subsystem", "migrate").Logger()); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	s := &api.Storage{
		Registry:      store,
		Records:       store,
		Configs:       store,
		Views:         store,
		Hub:           hub,
		Log:           log,
		SeedDir:       cfg.SeedDir,
		DashboardsDir: cfg.DashboardsDir,
	}
	return s, func() { _ = db.Close() }, nil
}
