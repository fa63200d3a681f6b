package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/acari-app/acari-backend/internal/users"
	"github.com/acari-app/acari-backend/pkg/bootstrap"
	"github.com/acari-app/acari-backend/pkg/db"
	"github.com/acari-app/acari-backend/pkg/enums"
	"github.com/acari-app/acari-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
	email   string
	role    string
}

// gooseCommands map onto Migrator.Exec.
var gooseCommands = map[string]bool{"up": true, "down": true, "status": true, "redo": true}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "command: up|down|status|redo|version|create|validate|grant-role")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "source migrations directory (create|validate)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.StringVar(&opts.email, "email", "", "user email (for grant-role)")
	flag.StringVar(&opts.role, "role", string(enums.UserRoleAdmin), "role to grant (for grant-role)")
	flag.Parse()

	// create and validate only touch the source tree and need no config.
	if handled, err := runOffline(opts); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	bootstrap.Main("migrate", func(ctx context.Context, rt *bootstrap.Runtime) error {
		return runOnline(ctx, rt, opts)
	})
}

func runOffline(opts options) (bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return true, errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return true, fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return true, nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return true, fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Println("migration validation passed")
		return true, nil
	}
	return false, nil
}

func runOnline(ctx context.Context, rt *bootstrap.Runtime, opts options) error {
	logg := rt.Logger
	ctx = logg.WithField(ctx, "cmd", opts.cmd)

	// Opened directly: the dev auto-migrate hook must not run ahead of down or redo.
	dbClient, err := db.New(ctx, rt.Config.DB, logg)
	if err != nil {
		return err
	}
	rt.Defer("database", dbClient)
	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}
	migrator, err := migrate.New(sqlDB, logg)
	if err != nil {
		return err
	}

	switch {
	case gooseCommands[opts.cmd]:
		return migrator.Exec(ctx, opts.cmd)
	case opts.cmd == "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return migrator.To(ctx, opts.version)
	case opts.cmd == "grant-role":
		if err := grantRole(ctx, users.NewRepository(dbClient.DB()), opts.email, opts.role); err != nil {
			return fmt.Errorf("grant role: %w", err)
		}
		logg.Info(logg.WithFields(ctx, map[string]any{"email": opts.email, "role": opts.role}), "migrate.role_granted")
		return nil
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}
}

// grantRole bootstraps back-office access; the first admin has nobody to promote them.
func grantRole(ctx context.Context, repo *users.Repository, email, rawRole string) error {
	email = users.NormalizeEmail(email)
	if email == "" {
		return errors.New("missing -email")
	}
	role, err := enums.ParseUserRole(rawRole)
	if err != nil {
		return err
	}
	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", email, err)
	}
	return repo.GrantRole(ctx, user.ID, role)
}
