package catalog

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending up migration. A database already at the
// latest version is not an error.
func Migrate(dsn string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("migrate: open embedded source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5DSN(dsn))
	if err != nil {
		return fmt.Errorf("migrate: init: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Error("migration source close failed", "err", srcErr)
		}
		if dbErr != nil {
			log.Error("migration db close failed", "err", dbErr)
		}
	}()

	m.Log = &migrateLogger{log: log}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migrate: read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migrate: database dirty at version %d", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema up to date", "version", from)
			return nil
		}
		return fmt.Errorf("migrate: up: %w", err)
	}

	to, _, _ := m.Version()
	log.Info("schema migrated", "from", from, "to", to)
	return nil
}

// pgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5:// scheme
// the migrate driver registers.
func pgx5DSN(dsn string) string {
	for _, p := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, p) {
			return "pgx5://" + strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}

type migrateLogger struct {
	log *slog.Logger
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *migrateLogger) Verbose() bool { return false }
