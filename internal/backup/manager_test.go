package backup

import (
	"context"
	"testing"
	"time"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
	"github.com/Naandalist/moneytalk-sub000/internal/storage"
)

func seedStore(t *testing.T, dir string, descriptions ...string) {
	t.Helper()
	store, err := storage.Open(dir, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, d := range descriptions {
		_, err := store.Insert(ctx, core.Transaction{
			Amount:      25,
			Category:    core.CategoryDining,
			Type:        core.Expense,
			Description: d,
			Date:        time.Now(),
		})
		if err != nil {
			t.Fatalf("insert %q: %v", d, err)
		}
	}
}

func countRows(t *testing.T, dir string) int {
	t.Helper()
	store, err := storage.Open(dir, "")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return int(n)
}

func TestManualBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	seedStore(t, dir, "lunch")

	m := NewManager(dir)
	if !m.ManualBackup(ctx) {
		t.Fatal("backup reported failure")
	}

	backups, err := m.ListBackups()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(backups.Transactions) != 1 || len(backups.Settings) != 1 {
		t.Fatalf("snapshot counts = %d/%d, want 1/1", len(backups.Transactions), len(backups.Settings))
	}

	// Mutate the live database past the snapshot.
	seedStore(t, dir, "dinner", "coffee")
	if got := countRows(t, dir); got != 3 {
		t.Fatalf("live rows = %d, want 3", got)
	}

	if !m.RestoreBackup(ctx, backups.Transactions[0], backups.Settings[0]) {
		t.Fatal("restore reported failure")
	}
	if got := countRows(t, dir); got != 1 {
		t.Errorf("rows after restore = %d, want 1", got)
	}
}

func TestRestoreTransactionsOnly(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	seedStore(t, dir, "lunch")

	m := NewManager(dir)
	if !m.ManualBackup(ctx) {
		t.Fatal("backup reported failure")
	}
	backups, err := m.ListBackups()
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	seedStore(t, dir, "dinner")
	if !m.RestoreBackup(ctx, backups.Transactions[0], "") {
		t.Fatal("restore reported failure")
	}
	if got := countRows(t, dir); got != 1 {
		t.Errorf("rows after restore = %d, want 1", got)
	}
}

func TestRestoreRequiresASelection(t *testing.T) {
	m := NewManager(t.TempDir())
	if m.RestoreBackup(context.Background(), "", "") {
		t.Error("restore with no snapshots selected should fail")
	}
}

func TestManualBackupMissingDatabase(t *testing.T) {
	// Empty data dir: nothing to copy, so the backup must fail cleanly.
	m := NewManager(t.TempDir())
	if m.ManualBackup(context.Background()) {
		t.Error("backup without database files should report failure")
	}
}

func TestListBackupsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	seedStore(t, dir, "lunch")

	m := NewManager(dir)
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		m.now = func() time.Time { return stamp }
		if !m.ManualBackup(ctx) {
			t.Fatalf("backup %d failed", i)
		}
	}

	backups, err := m.ListBackups()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(backups.Transactions) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(backups.Transactions))
	}
	for i := 1; i < len(backups.Transactions); i++ {
		if backups.Transactions[i-1] < backups.Transactions[i] {
			t.Errorf("not newest-first: %q before %q", backups.Transactions[i-1], backups.Transactions[i])
		}
	}
}

func TestListBackupsEmpty(t *testing.T) {
	m := NewManager(t.TempDir())
	backups, err := m.ListBackups()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(backups.Transactions) != 0 || len(backups.Settings) != 0 {
		t.Errorf("unexpected snapshots: %+v", backups)
	}
}

func TestDisplayTime(t *testing.T) {
	m := NewManager(t.TempDir())

	got := m.DisplayTime("transactions_backup_2026-08-28T09-30-00Z.db")
	want := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC).Local().Format("2006-01-02 15:04:05")
	if got != want {
		t.Errorf("DisplayTime = %q, want %q", got, want)
	}

	for _, name := range []string{
		"notes.txt",
		"transactions_backup_garbage.db",
		"settings_backup_.db",
	} {
		if got := m.DisplayTime(name); got != name {
			t.Errorf("DisplayTime(%q) = %q, want verbatim", name, got)
		}
	}
}
