// Package storage owns the two local sqlite databases: transactions.db for
// transactional records and settings.db for key-value state, the AI
// suggestion cache and per-day refresh counters.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	TransactionsFile = "transactions.db"
	SettingsFile     = "settings.db"
)

// Store is the process-local singleton over both databases. It is opened
// once at startup; all operations route through it.
type Store struct {
	transactions *sql.DB
	settings     *sql.DB
	dir          string
}

// Open opens (creating if needed) both databases under dir, runs schema
// migrations, and imports rows from a legacy on-disk location if one is
// configured and the new location is still empty. If schema creation
// fails, the broken database file is recreated from scratch exactly once
// before the store is declared unavailable.
func Open(dir, legacyDir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	txDB, err := openWithRecovery(filepath.Join(dir, TransactionsFile), transactionMigrationsFS, "migrations/transactions")
	if err != nil {
		return nil, fmt.Errorf("transactions database unavailable: %w", err)
	}

	settingsDB, err := openWithRecovery(filepath.Join(dir, SettingsFile), settingsMigrationsFS, "migrations/settings")
	if err != nil {
		txDB.Close()
		return nil, fmt.Errorf("settings database unavailable: %w", err)
	}

	s := &Store{
		transactions: txDB,
		settings:     settingsDB,
		dir:          dir,
	}

	if legacyDir != "" && legacyDir != dir {
		if err := s.importLegacy(context.Background(), legacyDir); err != nil {
			// Legacy rows stay readable in place; the store is still usable.
			slog.Warn("Legacy database import failed", "legacy_dir", legacyDir, "error", err)
		}
	}

	return s, nil
}

// openWithRecovery opens and migrates one database. A failed open or
// migration deletes the database files and retries once; this is the only
// automatic retry.
func openWithRecovery(path string, fs embed.FS, migrationsDir string) (*sql.DB, error) {
	db, err := openAndMigrate(path, fs, migrationsDir)
	if err == nil {
		return db, nil
	}

	slog.Warn("Database open failed, recreating schema from scratch", "path", path, "error", err)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		os.Remove(path + suffix)
	}

	db, retryErr := openAndMigrate(path, fs, migrationsDir)
	if retryErr != nil {
		return nil, fmt.Errorf("recreate after %v: %w", err, retryErr)
	}
	return db, nil
}

func openAndMigrate(path string, fs embed.FS, migrationsDir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(path, fs, migrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Dir returns the data directory holding both database files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Close() error {
	var firstErr error
	if s.transactions != nil {
		if err := s.transactions.Close(); err != nil {
			firstErr = err
		}
	}
	if s.settings != nil {
		if err := s.settings.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// importLegacy copies rows from a legacy database location into the new
// one, preserving ids. The legacy files are deliberately left in place so
// an interrupted migration never loses data. Idempotent: once the new
// transactions table is non-empty nothing is copied again.
func (s *Store) importLegacy(ctx context.Context, legacyDir string) error {
	legacyPath := filepath.Join(legacyDir, TransactionsFile)
	if _, err := os.Stat(legacyPath); err != nil {
		return nil // nothing to migrate
	}

	count, err := s.Count(ctx)
	if err != nil {
		return fmt.Errorf("count new-location rows: %w", err)
	}
	if count > 0 {
		slog.Debug("Skipping legacy import, new location already populated", "rows", count)
		return nil
	}

	legacy, err := sql.Open("sqlite", legacyPath)
	if err != nil {
		return fmt.Errorf("open legacy database: %w", err)
	}
	defer legacy.Close()

	rows, err := legacy.QueryContext(ctx,
		`SELECT id, amount, category, type, description, date, image_url FROM transactions`)
	if err != nil {
		return fmt.Errorf("read legacy transactions: %w", err)
	}
	defer rows.Close()

	tx, err := s.transactions.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback()

	migrated := 0
	for rows.Next() {
		var (
			id                                   int64
			amount                               float64
			category, typ, description, date, im string
		)
		if err := rows.Scan(&id, &amount, &category, &typ, &description, &date, &im); err != nil {
			return fmt.Errorf("scan legacy row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, amount, category, type, description, date, image_url)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, amount, category, typ, description, date, im); err != nil {
			return fmt.Errorf("insert legacy row %d: %w", id, err)
		}
		migrated++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate legacy rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit legacy import: %w", err)
	}

	s.importLegacySettings(ctx, legacyDir)

	slog.Info("Legacy database migrated", "rows", migrated, "legacy_dir", legacyDir)
	return nil
}

// importLegacySettings is best effort: a missing or unreadable legacy
// settings database never blocks the transaction import.
func (s *Store) importLegacySettings(ctx context.Context, legacyDir string) {
	legacyPath := filepath.Join(legacyDir, SettingsFile)
	if _, err := os.Stat(legacyPath); err != nil {
		return
	}

	legacy, err := sql.Open("sqlite", legacyPath)
	if err != nil {
		slog.Warn("Open legacy settings failed", "error", err)
		return
	}
	defer legacy.Close()

	rows, err := legacy.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		slog.Warn("Read legacy settings failed", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			slog.Warn("Scan legacy setting failed", "error", err)
			continue
		}
		if _, err := s.settings.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
			key, value); err != nil {
			slog.Warn("Copy legacy setting failed", "key", key, "error", err)
		}
	}
}
