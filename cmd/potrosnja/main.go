package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"potrosnja/internal/amqp"
	"potrosnja/internal/auth"
	"potrosnja/internal/cli"
	apphttp "potrosnja/internal/http"
	"potrosnja/internal/services"
	"potrosnja/web"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// AMQP is optional: without a URL expenses are only stored locally.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP event publishing disabled - no AMQP_URL provided")
	}

	receiptName, receiptBytes := web.DefaultReceipt()
	expSvc := services.NewExpenseService(repo, amqpClient, receiptName, receiptBytes)
	defer expSvc.Close()

	authSvc := auth.NewService(repo, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, authSvc, expSvc, cfg.SecureCookies)
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Expired sessions are swept periodically, but only when a TTL is
	// configured; without one sessions live until logout.
	if cfg.SessionTTL > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.SessionTTL / 2)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					n, err := repo.DeleteExpiredSessions(gctx)
					if err != nil {
						logger.Error("Session sweep failed", "error", err)
						continue
					}
					if n > 0 {
						logger.Info("Expired sessions removed", "count", n)
					}
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
