package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/acari-app/acari-backend/pkg/logger"
)

// DefaultDir is the on-disk location used by create and validate.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrator applies the migrations compiled into the binary. It does not own
// the connection; closing the database stays with the caller.
type Migrator struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func New(db *sql.DB, logg *logger.Logger) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	sources, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sources)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider, logg: logg}, nil
}

// Exec runs one of the named commands: up, down, redo or status.
func (m *Migrator) Exec(ctx context.Context, command string) error {
	switch command {
	case "up":
		_, err := m.Up(ctx)
		return err
	case "down":
		res, err := m.provider.Down(ctx)
		m.report(ctx, res)
		return wrap("down", err)
	case "redo":
		res, err := m.provider.Down(ctx)
		m.report(ctx, res)
		if err != nil {
			return wrap("redo down", err)
		}
		res, err = m.provider.UpByOne(ctx)
		m.report(ctx, res)
		return wrap("redo up", err)
	case "status":
		return m.Status(ctx)
	}
	return fmt.Errorf("migrate: unknown command %q", command)
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	m.report(ctx, results...)
	return len(results), wrap("up", err)
}

// To migrates up or down until the database sits at version.
func (m *Migrator) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return wrap("db version", err)
	}
	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = m.provider.UpTo(ctx, target)
	default:
		results, err = m.provider.DownTo(ctx, target)
	}
	m.report(ctx, results...)
	return wrap(fmt.Sprintf("migrate to %d", target), err)
}

func (m *Migrator) Status(ctx context.Context) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return wrap("status", err)
	}
	for _, st := range statuses {
		fields := map[string]any{"version": st.Source.Version, "state": string(st.State)}
		if !st.AppliedAt.IsZero() {
			fields["appliedAt"] = st.AppliedAt
		}
		m.logg.Info(m.logg.WithFields(ctx, fields), "migrate.status")
	}
	return nil
}

func (m *Migrator) report(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		m.logg.Info(m.logg.WithFields(ctx, map[string]any{
			"version":    res.Source.Version,
			"direction":  res.Direction,
			"durationMs": res.Duration.Milliseconds(),
		}), "migrate.applied")
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
