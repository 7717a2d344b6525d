package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Slideboard/internal/adapters/answer"
	"github.com/dkeye/Slideboard/internal/adapters/convert"
	router "github.com/dkeye/Slideboard/internal/adapters/http"
	"github.com/dkeye/Slideboard/internal/adapters/persistence"
	"github.com/dkeye/Slideboard/internal/app"
	"github.com/dkeye/Slideboard/internal/app/ingest"
	"github.com/dkeye/Slideboard/internal/codec"
	"github.com/dkeye/Slideboard/internal/config"
	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/upload"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("slideboard", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs, func(fresh *config.Config) {
		zerolog.SetGlobalLevel(fresh.Level())
		log.Info().Str("level", fresh.Level().String()).Msg("log level changed")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode != "release" {
		// Human-friendly output for terminal; JSON in release.
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(cfg.Level())

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.MaxInflated > 0 {
		codec.MaxInflated = cfg.MaxInflated
	}

	store, err := persistence.Open(cfg.Persistence.Path)
	if err != nil {
		return fmt.Errorf("open persistence: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Assets.Dir, 0o755); err != nil {
		return fmt.Errorf("assets dir: %w", err)
	}
	assetsFs := afero.NewBasePathFs(osFs, cfg.Assets.Dir)
	assets := &convert.Assets{FS: assetsFs, PublicBase: cfg.Assets.PublicBase}
	staging := convert.NewStaging(osFs, cfg.Upload.StagingDir)

	converter := convert.NewRouter(osFs).
		Handle("image/", &convert.ImageConverter{Staged: osFs, Assets: assets})
	if cfg.Convert.URL != "" {
		remote := convert.NewRemoteConverter(cfg.Convert.URL, cfg.Convert.Timeout, osFs, assets)
		converter.Handle("application/", remote)
	}

	uploads := upload.NewAssembler(upload.Limits{
		MaxChunks: cfg.Upload.MaxChunks,
		MaxBytes:  cfg.Upload.MaxBytes,
		TTL:       cfg.Upload.TTL,
	})

	o := &app.Orchestrator{
		Registry:    app.NewRegistry(),
		Rooms:       core.NewMemoryStore(),
		Policy:      app.SimplePolicy{},
		Uploads:     uploads,
		Persistence: store,
		Options: app.Options{
			EvictEmpty:    cfg.Rooms.EvictEmpty,
			AnswerTimeout: cfg.Answer.Timeout,
		},
	}
	o.Ingest = ingest.New(staging, converter, o)
	if cfg.Answer.RateLimit > 0 {
		o.Limiter = app.NewRateLimiter(cfg.Answer.RateLimit, cfg.Answer.RateInterval)
	}
	if cfg.Answer.URL != "" {
		o.Answerer = answer.NewClient(cfg.Answer.URL, cfg.Answer.Model, cfg.Answer.APIKey, cfg.Answer.Timeout)
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Persistence: store, Assets: assetsFs})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Slideboard server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return uploads.RunJanitor(gctx, cfg.Upload.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	o.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
