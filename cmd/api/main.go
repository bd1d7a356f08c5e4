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

	"questswap/auth"
	"questswap/config"
	"questswap/db"
	"questswap/follow"
	"questswap/goal"
	"questswap/outbox"
	"questswap/server"
	"questswap/swap"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	goalRepo := goal.NewRepository(pool)
	goalSvc := goal.NewService(goalRepo)

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret)

	followRepo := follow.NewRepository(pool)
	retryQueue := outbox.NewDirectWriter(pool)
	dispatcher := follow.NewDispatcher(followRepo, retryQueue)

	swapRepo := swap.NewRepository(pool)
	checker := swap.NewEligibility(goalRepo, swapRepo, cfg.AllowConcurrentGoalSwaps)
	swapSvc := swap.NewService(pool, swapRepo, goalRepo, checker, outbox.NewWriter(), dispatcher).
		WithDispatchTimeout(cfg.DispatchTimeout)

	worker := outbox.NewWorker(pool, log, cfg.OutboxPollInterval, cfg.OutboxMaxAttempts)
	worker.Handle(follow.TopicRetry, follow.RetryHandler(followRepo))

	handler := server.New(server.Config{
		Swaps: swapSvc,
		Auth:  authSvc,
		Goals: goalSvc,
		Log:   log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
