package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pinwall/cfg"
	"pinwall/svc/access"
	"pinwall/svc/api"
	"pinwall/svc/auth"
	"pinwall/svc/ledger"
	"pinwall/svc/lim"
	"pinwall/svc/persist"
	"pinwall/svc/store"
	"pinwall/svc/track"
	"pinwall/svc/util"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Msg("starting pinwall")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgLedger := ledger.New(c.PostCooldown)
	accessReg := access.New()
	tracker := track.New(c.HistoryCap)
	pasteStore, err := store.New(c.UploadDir, c.PasteMinSize, c.PasteMaxSize)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize paste store")
		os.Exit(1)
	}

	manager, err := persist.NewManager(c.SnapshotPath, msgLedger, accessReg, tracker, pasteStore)
	if err != nil {
		util.Fatal().Err(err).Str("path", c.SnapshotPath).Msg("failed to initialize persistence")
		os.Exit(1)
	}
	manager.Restore()

	hasher, err := auth.NewHasher(c.Argon2Time, c.Argon2Memory, c.Argon2Parallelism, c.Argon2KeyLen, []byte(c.Pepper.Value()))
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize hasher")
		os.Exit(1)
	}

	limiter, err := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, c.RateLimit.MaxClients, c.TrustedProxies)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize rate limiter")
		os.Exit(1)
	}
	util.Info().
		Int("rpm", c.RateLimit.RPM).
		Int("burst", c.RateLimit.Burst).
		Strs("trusted_proxies", c.TrustedProxies).
		Msg("rate limiter initialized")

	server := api.NewServer(api.Deps{
		Cfg:     c,
		Ledger:  msgLedger,
		Store:   pasteStore,
		Access:  accessReg,
		Tracker: tracker,
		Hasher:  hasher,
		Persist: manager,
		Lim:     limiter,
	})

	if err := manager.StartSweeper(ctx, c.SweepInterval, c.PasteMaxAge); err != nil {
		util.Error().Err(err).Msg("failed to start stale paste sweeper")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		util.Info().Msg("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		util.Error().Err(err).Msg("shutdown error")
	}

	// final snapshot regardless of what the request path already wrote
	if err := manager.Save(); err != nil {
		util.Error().Err(err).Msg("final snapshot failed")
	}
	util.Info().Msg("shutdown complete")
}
