// Package server boots the marketplace: it opens every backing resource from
// configuration, serves HTTP and gRPC, and drains both on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shashiranjanraj/phonedeals/app/repositories"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/config"
	_ "github.com/shashiranjanraj/phonedeals/database/migrations"
	"github.com/shashiranjanraj/phonedeals/internal/kernel"
	"github.com/shashiranjanraj/phonedeals/pkg/cache"
	"github.com/shashiranjanraj/phonedeals/pkg/database"
	"github.com/shashiranjanraj/phonedeals/pkg/grpc"
	"github.com/shashiranjanraj/phonedeals/pkg/logger"
	"github.com/shashiranjanraj/phonedeals/pkg/mail"
	"github.com/shashiranjanraj/phonedeals/pkg/migration"
	"github.com/shashiranjanraj/phonedeals/pkg/schedule"
	"github.com/shashiranjanraj/phonedeals/pkg/session"
	"github.com/shashiranjanraj/phonedeals/pkg/storage"
	"github.com/shashiranjanraj/phonedeals/pkg/workerpool"
	"github.com/shashiranjanraj/phonedeals/pkg/ws"
)

const shutdownGrace = 15 * time.Second

// Options tweak a single serve invocation.
type Options struct {
	Migrate bool
}

// Start runs until the process is signalled.
func Start(opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, opts)
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var closers []func(context.Context) error
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](cctx); err != nil {
				logger.Warn("shutdown: close", "error", err)
			}
		}
	}()

	if uri := config.LogMongoURI(); uri != "" {
		sink, err := logger.DialMongoSink(ctx, uri, config.MongoDatabase(), "logs", slog.LevelInfo)
		if err != nil {
			logger.Warn("log shipping disabled", "error", err)
		} else {
			logger.Tee(sink)
			closers = append(closers, sink.Close)
		}
	}

	db, err := database.Connect()
	if err != nil {
		return err
	}
	closers = append(closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if opts.Migrate {
		ran, err := migration.New(db).Run()
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "count", len(ran))
	}

	store := cache.Open(ctx)
	closers = append(closers, func(context.Context) error { return store.Close() })

	disk, err := storage.Open(ctx)
	if err != nil {
		return err
	}

	var audit repositories.AdminLogStore
	if config.AuditStore() == "mongo" {
		m, err := repositories.DialMongoAdminLog(ctx, config.MongoURI(), config.MongoDatabase())
		if err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
		audit = m
		closers = append(closers, m.Close)
	}

	pool := workerpool.New(config.Int("MAIL_WORKERS", 4))
	closers = append(closers, func(context.Context) error { pool.Shutdown(); return nil })

	hub := ws.NewHub()
	origins := []string{config.FrontendURL()}
	ws.SetCheckOrigin(func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		if o == "" {
			return true
		}
		for _, allowed := range origins {
			if strings.EqualFold(strings.TrimRight(o, "/"), allowed) {
				return true
			}
		}
		return false
	})
	go hub.Run(ctx)

	sessOpts := session.DefaultOptions()
	sessOpts.TTL = config.AdminSessionTTL()
	sessOpts.Secure = strings.HasPrefix(config.AppURL(), "https://")

	k, err := kernel.New(kernel.Deps{
		DB:          db,
		Cache:       store,
		Disk:        disk,
		Mailer:      mail.FromConfig(),
		AuditStore:  audit,
		Async:       pool,
		Hub:         hub,
		Auth:        services.AuthOptionsFromConfig(),
		Session:     sessOpts,
		FrontendURL: config.FrontendURL(),
		Origins:     origins,
		MaxImage:    config.MaxImageBytes(),
		RateLimit:   config.Int("RATE_LIMIT_PER_MIN", 200),
		AuthRate:    config.Int("AUTH_RATE_LIMIT_PER_MIN", 20),
		AuthWindow:  time.Minute,
	})
	if err != nil {
		return err
	}
	for _, l := range k.Limiters {
		go l.Janitor(ctx)
	}
	jobs := schedule.New().Every(time.Hour, "purge-unverified", func(ctx context.Context) error {
		_, err := k.Auth.PurgeUnverified(ctx)
		return err
	})
	jctx, stopJobs := context.WithCancel(ctx)
	jobs.Start(jctx)
	defer func() {
		stopJobs()
		jobs.Wait()
	}()

	if config.AdminPasswordHash() == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is empty; admin login is disabled")
	}

	rpc, err := grpc.Start(ctx, config.GRPCPort(), k.Ping)
	if err != nil {
		return err
	}
	defer rpc.Stop()

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           k.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(sctx)
}
