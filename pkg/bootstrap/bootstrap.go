// Package bootstrap holds the start-up sequence shared by every binary:
// .env loading, config, logger, and the resources a process opens and must
// close on the way out.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/instance"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/migrate"
	"github.com/acari-app/acari-backend/pkg/redis"
)

// Runtime is a started process: its config, its logger, and everything that
// has to be closed when it exits.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger

	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Main starts kind, hands a signal-aware context to run and exits non-zero
// when either fails. Resources registered on the runtime are closed in
// reverse order before exit.
func Main(kind string, run func(ctx context.Context, rt *Runtime) error) {
	rt, err := Start(kind)
	if err != nil {
		logger.New(logger.Options{ServiceName: kind}).Error(context.Background(), "bootstrap.config_failed", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": kind,
	})

	err = run(ctx, rt)
	stop()
	if closeErr := rt.Close(); closeErr != nil {
		rt.Logger.Error(ctx, "bootstrap.close_failed", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, kind+".stopped", err)
		os.Exit(1)
	}
	rt.Logger.Info(ctx, kind+".shutdown")
}

// Start loads .env when present, then config, then builds the leveled logger.
func Start(kind string) (*Runtime, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = kind

	rt := &Runtime{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}
	if envErr != nil {
		rt.Logger.Debug(context.Background(), "bootstrap.dotenv_skipped")
	}
	return rt, nil
}

// Defer registers c to be closed by Close.
func (rt *Runtime) Defer(name string, c io.Closer) {
	rt.closers = append(rt.closers, namedCloser{name: name, c: c})
}

// Close closes registered resources newest first and joins their errors.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		nc := rt.closers[i]
		if cerr := nc.c.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", nc.name, cerr))
		}
	}
	rt.closers = nil
	return err
}

// Database connects to Postgres and, in dev with auto-migrate on, applies
// pending migrations before returning.
func (rt *Runtime) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Defer("database", client)

	if err := migrate.MaybeRunDev(ctx, rt.Config, rt.Logger, client); err != nil {
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	return client, nil
}

func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Defer("redis", client)
	return client, nil
}
