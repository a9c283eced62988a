package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Naandalist/moneytalk-sub000/internal/cache"
	"github.com/Naandalist/moneytalk-sub000/internal/core"
	"github.com/Naandalist/moneytalk-sub000/internal/storage"
)

const (
	tableTransactions = "transactions"
	tableSettings     = "settings"
	tableProfiles     = "user_profiles"
	tableSuggestions  = "ai_suggestions"
	tableRefreshCount = "daily_refresh_count"

	defaultAutoSyncInterval = time.Hour
	defaultBucket           = "receipts"
)

// Result is the structured outcome of a user-triggered cloud operation.
// Remote failures land here as values; they are never raised to the UI.
type Result struct {
	Success bool
	Skipped bool
	Message string
	Count   int
	Err     string
}

// Status reports the last successful sync and remote row counts.
type Status struct {
	LastSyncTime     time.Time
	TransactionCount int
	SettingsCount    int
}

// Config tunes the reconciliation service.
type Config struct {
	AutoSyncInterval time.Duration // minimum gap between automatic syncs
	Bucket           string        // object-storage bucket for receipts
}

// Service reconciles the local store against the remote replica. The
// device identity is resolved once via Initialize and threaded through
// every remote call.
type Service struct {
	client      *Client
	store       *storage.Store
	cfg         Config
	identity    DeviceIdentity
	suggestions *cache.LRU[string]
	now         func() time.Time
}

func NewService(client *Client, store *storage.Store, cfg Config) *Service {
	if cfg.AutoSyncInterval <= 0 {
		cfg.AutoSyncInterval = defaultAutoSyncInterval
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultBucket
	}
	return &Service{
		client:      client,
		store:       store,
		cfg:         cfg,
		suggestions: cache.NewLRU[string](8, 10*time.Minute),
		now:         time.Now,
	}
}

// remoteTransaction is the wire shape of one backed-up row.
type remoteTransaction struct {
	UserID      string  `json:"user_id"`
	LocalID     int64   `json:"local_id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	ImageURL    string  `json:"image_url"`
}

type remoteSetting struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// Initialize lazily resolves the device identity and ensures the remote
// profile row exists. Idempotent; safe to call before every operation.
func (s *Service) Initialize(ctx context.Context) (DeviceIdentity, error) {
	if s.identity != "" {
		return s.identity, nil
	}

	id, err := LoadOrCreateIdentity(ctx, s.store)
	if err != nil {
		return "", err
	}

	profile := map[string]any{
		"user_id":    id.String(),
		"created_at": s.now().UTC().Format(time.RFC3339),
	}
	if err := s.client.upsert(ctx, tableProfiles, "user_id", profile); err != nil {
		// The profile row is best effort; a duplicate or unreachable
		// profile table must not block sync.
		slog.WarnContext(ctx, "Profile upsert failed", "device_id", id, "error", err)
	}

	s.identity = id
	return id, nil
}

// BackupAll replaces the device's entire remote transaction partition
// with the given snapshot: delete everything scoped to this device, then
// insert the full set. The delete strictly precedes the insert; there is
// no diffing or merging.
func (s *Service) BackupAll(ctx context.Context, txs []core.Transaction) Result {
	id, err := s.Initialize(ctx)
	if err != nil {
		return failure("backup failed: device identity unavailable", err)
	}

	scope := "user_id=eq." + id.String()
	if err := s.client.deleteRows(ctx, tableTransactions, scope); err != nil {
		return failure("backup failed: could not clear remote transactions", err)
	}

	if len(txs) > 0 {
		rows := make([]remoteTransaction, len(txs))
		for i, t := range txs {
			rows[i] = remoteTransaction{
				UserID:      id.String(),
				LocalID:     t.ID,
				Amount:      t.Amount,
				Category:    string(t.Category),
				Type:        string(t.Type),
				Description: t.Description,
				Date:        t.Date.UTC().Format(time.RFC3339),
				ImageURL:    t.ImageURL,
			}
		}
		if err := s.client.insert(ctx, tableTransactions, rows); err != nil {
			return failure("backup failed: could not upload transactions", err)
		}
	}

	if err := s.backupSettings(ctx, id); err != nil {
		slog.WarnContext(ctx, "Settings backup failed", "error", err)
	}

	slog.InfoContext(ctx, "Cloud backup completed", "device_id", id, "count", len(txs))
	return Result{
		Success: true,
		Message: fmt.Sprintf("backed up %d transactions", len(txs)),
		Count:   len(txs),
	}
}

func (s *Service) backupSettings(ctx context.Context, id DeviceIdentity) error {
	settings, err := s.store.AllSettings(ctx)
	if err != nil {
		return err
	}
	for key, value := range settings {
		row := remoteSetting{UserID: id.String(), Key: key, Value: value}
		if err := s.client.upsert(ctx, tableSettings, "user_id,key", row); err != nil {
			return err
		}
	}
	return nil
}

// RestoreAll fetches the device's remote rows ordered by date descending
// and maps them back into local shape. It does not write to local
// storage; merging is the caller's decision.
func (s *Service) RestoreAll(ctx context.Context) ([]core.Transaction, error) {
	id, err := s.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	var rows []remoteTransaction
	query := "user_id=eq." + id.String() + "&order=date.desc"
	if err := s.client.selectRows(ctx, tableTransactions, query, &rows); err != nil {
		return nil, fmt.Errorf("fetch remote transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(time.RFC3339, r.Date)
		if err != nil {
			slog.WarnContext(ctx, "Skipping remote row with invalid date",
				"local_id", r.LocalID, "date", r.Date, "error", err)
			continue
		}
		out = append(out, core.Transaction{
			ID:          r.LocalID,
			Amount:      r.Amount,
			Category:    core.NormalizeCategory(r.Category),
			Type:        core.ParseType(r.Type),
			Description: r.Description,
			Date:        date.UTC(),
			ImageURL:    r.ImageURL,
		})
	}
	return out, nil
}

// AutoSync is the rate-limited wrapper over BackupAll: if the last
// successful sync is younger than the configured interval it does
// nothing. The timestamp check is a coarse allowance, not an atomic
// guard; callers serialize concurrent destructive operations themselves.
func (s *Service) AutoSync(ctx context.Context, txs []core.Transaction) Result {
	last, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return failure("auto sync failed: could not read last sync time", err)
	}
	if !last.IsZero() && s.now().Sub(last) < s.cfg.AutoSyncInterval {
		slog.DebugContext(ctx, "Auto sync skipped, within interval",
			"last_sync", last, "interval", s.cfg.AutoSyncInterval)
		return Result{Success: true, Skipped: true, Message: "sync skipped, already up to date"}
	}

	result := s.BackupAll(ctx, txs)
	if result.Success {
		if err := s.store.SetLastSyncTime(ctx, s.now()); err != nil {
			slog.WarnContext(ctx, "Could not persist last sync time", "error", err)
		}
	}
	return result
}

// SyncStatus returns nil when no sync has ever completed or the device
// identity is not yet established.
func (s *Service) SyncStatus(ctx context.Context) (*Status, error) {
	storedID, err := s.store.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	if storedID == "" {
		return nil, nil
	}

	last, err := s.store.LastSyncTime(ctx)
	if err != nil {
		return nil, err
	}
	if last.IsZero() {
		return nil, nil
	}

	scope := "user_id=eq." + storedID
	status := &Status{LastSyncTime: last}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.client.countRows(gctx, tableTransactions, scope)
		if err != nil {
			return err
		}
		status.TransactionCount = n
		return nil
	})
	g.Go(func() error {
		n, err := s.client.countRows(gctx, tableSettings, scope)
		if err != nil {
			return err
		}
		status.SettingsCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch remote counts: %w", err)
	}
	return status, nil
}

func failure(message string, err error) Result {
	slog.Error("Cloud operation failed", "message", message, "error", err)
	return Result{Success: false, Message: message, Err: err.Error()}
}
