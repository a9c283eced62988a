// Package backup copies the on-disk database files to timestamped
// snapshots and restores them. It operates on closed database files;
// callers close the store before restoring and reopen it after.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Naandalist/moneytalk-sub000/internal/storage"
)

const (
	backupsDir = "backups"

	transactionsPrefix = "transactions_backup_"
	settingsPrefix     = "settings_backup_"

	// RFC3339 with ':' replaced so names are valid on every filesystem.
	stampLayout = "2006-01-02T15-04-05Z"
)

// Manager snapshots the two database files living in the store's data
// directory.
type Manager struct {
	dir string
	now func() time.Time
}

func NewManager(dataDir string) *Manager {
	return &Manager{dir: dataDir, now: time.Now}
}

// Backups lists snapshot filenames per database, newest first.
type Backups struct {
	Transactions []string
	Settings     []string
}

// ManualBackup copies both database files into the backups directory
// under a shared timestamp. It reports success; failures are logged,
// never raised.
func (m *Manager) ManualBackup(ctx context.Context) bool {
	dest := filepath.Join(m.dir, backupsDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		slog.ErrorContext(ctx, "Could not create backups directory", "dir", dest, "error", err)
		return false
	}

	stamp := strings.ReplaceAll(m.now().UTC().Format(time.RFC3339), ":", "-")

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return copyFile(
			filepath.Join(m.dir, storage.TransactionsFile),
			filepath.Join(dest, transactionsPrefix+stamp+".db"),
		)
	})
	g.Go(func() error {
		return copyFile(
			filepath.Join(m.dir, storage.SettingsFile),
			filepath.Join(dest, settingsPrefix+stamp+".db"),
		)
	})
	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Backup failed", "error", err)
		return false
	}

	slog.InfoContext(ctx, "Backup created", "stamp", stamp)
	return true
}

// ListBackups returns the snapshot filenames grouped by database,
// newest first. A missing backups directory yields empty lists.
func (m *Manager) ListBackups() (Backups, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, backupsDir))
	if os.IsNotExist(err) {
		return Backups{}, nil
	}
	if err != nil {
		return Backups{}, fmt.Errorf("list backups: %w", err)
	}

	var out Backups
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
		case strings.HasPrefix(name, transactionsPrefix):
			out.Transactions = append(out.Transactions, name)
		case strings.HasPrefix(name, settingsPrefix):
			out.Settings = append(out.Settings, name)
		}
	}

	// Timestamps are fixed-width, so reverse-lexicographic is
	// newest-first.
	sort.Sort(sort.Reverse(sort.StringSlice(out.Transactions)))
	sort.Sort(sort.Reverse(sort.StringSlice(out.Settings)))
	return out, nil
}

// RestoreBackup overwrites the live database files from the named
// snapshots. Either name may be empty to skip that database. The store
// must be closed; stale WAL sidecars of overwritten files are removed.
func (m *Manager) RestoreBackup(ctx context.Context, txFile, settingsFile string) bool {
	if txFile == "" && settingsFile == "" {
		slog.WarnContext(ctx, "Restore requested with no snapshots selected")
		return false
	}

	restore := func(snapshot, live string) error {
		if snapshot == "" {
			return nil
		}
		src := filepath.Join(m.dir, backupsDir, snapshot)
		dst := filepath.Join(m.dir, live)
		if err := copyFile(src, dst); err != nil {
			return err
		}
		os.Remove(dst + "-wal")
		os.Remove(dst + "-shm")
		return nil
	}

	if err := restore(txFile, storage.TransactionsFile); err != nil {
		slog.ErrorContext(ctx, "Transactions restore failed", "snapshot", txFile, "error", err)
		return false
	}
	if err := restore(settingsFile, storage.SettingsFile); err != nil {
		slog.ErrorContext(ctx, "Settings restore failed", "snapshot", settingsFile, "error", err)
		return false
	}

	slog.InfoContext(ctx, "Restore completed", "transactions", txFile, "settings", settingsFile)
	return true
}

// DisplayTime renders a snapshot filename's embedded timestamp in the
// local zone. Names that don't carry a parseable timestamp come back
// verbatim.
func (m *Manager) DisplayTime(filename string) string {
	name := strings.TrimSuffix(filename, ".db")
	switch {
	case strings.HasPrefix(name, transactionsPrefix):
		name = strings.TrimPrefix(name, transactionsPrefix)
	case strings.HasPrefix(name, settingsPrefix):
		name = strings.TrimPrefix(name, settingsPrefix)
	default:
		return filename
	}

	stamp, err := time.Parse(stampLayout, name)
	if err != nil {
		return filename
	}
	return stamp.Local().Format("2006-01-02 15:04:05")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
