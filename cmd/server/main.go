package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kanabomb/server/internal/config"
	"github.com/kanabomb/server/internal/game"
	"github.com/kanabomb/server/internal/httpapi"
	"github.com/kanabomb/server/internal/hub"
	"github.com/kanabomb/server/internal/words"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	log, err := buildLogger(cfg.Debug)
	if err != nil {
		zap.NewExample().Fatal("logger", zap.Error(err))
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dict, err := words.LoadDictionary(cfg.DictPath)
	if err != nil {
		return err
	}
	patterns, err := words.LoadPatterns(cfg.PatternsDir)
	if err != nil {
		return err
	}
	log.Info("word data loaded",
		zap.Int("dictionary_buckets", len(dict)),
		zap.Int("pattern_tiers", len(patterns)))

	newSession := func() *game.Session {
		return game.NewSession(dict, patterns)
	}

	h := hub.NewHub(ctx, newSession, cfg.LobbyTTL, cfg.SweepInterval, log)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, log, cfg.StaticDir, rate.Limit(cfg.MsgRate), cfg.MsgBurst),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		h.Inbox() <- hub.ShutdownHub{}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
