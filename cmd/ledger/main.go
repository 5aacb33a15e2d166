// Package main запускает HTTP-сервер леджера комментариев.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/commentpass-ledger/internal/cache"
	"github.com/mmeshcher/commentpass-ledger/internal/config"
	"github.com/mmeshcher/commentpass-ledger/internal/events"
	"github.com/mmeshcher/commentpass-ledger/internal/handler"
	"github.com/mmeshcher/commentpass-ledger/internal/ledger"
	"github.com/mmeshcher/commentpass-ledger/internal/metrics"
	"github.com/mmeshcher/commentpass-ledger/internal/middleware"
	"github.com/mmeshcher/commentpass-ledger/internal/rail"
	"github.com/mmeshcher/commentpass-ledger/internal/repository"
	"github.com/mmeshcher/commentpass-ledger/internal/validation"
)

type publisher interface {
	ledger.Publisher
	Close() error
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	operator := validation.NormalizeIdentity(cfg.OperatorIdentity)
	if !validation.IsValidIdentity(operator) {
		sugar.Fatalw("configuration error", "error", "invalid operator identity", "operator", cfg.OperatorIdentity)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo ledger.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is not set, ledger state is kept in memory and lost on restart")
		repo = repository.NewMemoryRepository()
	}

	m := metrics.New()
	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithMetrics(m),
	}

	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer c.Close()
		opts = append(opts, ledger.WithCache(c))
	}

	var pub publisher = events.NewLogPublisher(logger)
	if cfg.RabbitMQURL != "" {
		p, err := events.Dial(cfg.RabbitMQURL, 5, 2*time.Second)
		if err != nil {
			sugar.Fatalw("rabbitmq initialization error", "error", err.Error())
		}
		pub = p
	}
	defer pub.Close()
	opts = append(opts, ledger.WithPublisher(pub))

	l := ledger.New(repo, rail.NewClient(cfg.TransferRailAddress), operator, opts...)
	defer l.Close()

	if st, err := repo.GetState(ctx); err != nil {
		sugar.Warnw("read ledger state", "error", err.Error())
	} else {
		m.SetState(st)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, using a random secret: issued tokens will not survive a restart")
	}
	h := handler.NewHandler(l, logger, authMiddleware, m.Handler(), cfg.RateLimit)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting ledger server", "addr", cfg.RunAddress, "operator", operator)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
