package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Well-known settings keys.
const (
	keyDeviceID       = "device_id"
	keyLastSync       = "last_sync_time"
	keySuggestion     = "ai_suggestion"
	keySuggestionTime = "ai_suggestion_time"
)

// GetSetting returns the value for key, or "" when the key is absent.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.settings.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a key-value pair.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.settings.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// AllSettings returns every stored key-value pair.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.settings.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

// SettingsCount returns the number of stored settings rows.
func (s *Store) SettingsCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.settings.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count settings: %w", err)
	}
	return n, nil
}

// DeviceID returns the persisted device identity, or "" if none exists.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, keyDeviceID)
}

// SetDeviceID persists the device identity.
func (s *Store) SetDeviceID(ctx context.Context, id string) error {
	return s.SetSetting(ctx, keyDeviceID, id)
}

// LastSyncTime returns the timestamp of the last successful cloud sync,
// or the zero time if no sync has completed.
func (s *Store) LastSyncTime(ctx context.Context) (time.Time, error) {
	value, err := s.GetSetting(ctx, keyLastSync)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		// An unreadable timestamp just means "never synced".
		return time.Time{}, nil
	}
	return t, nil
}

// SetLastSyncTime records a successful cloud sync.
func (s *Store) SetLastSyncTime(ctx context.Context, t time.Time) error {
	return s.SetSetting(ctx, keyLastSync, t.UTC().Format(time.RFC3339))
}

// SaveSuggestion caches an AI-generated spending suggestion with its
// generation timestamp.
func (s *Store) SaveSuggestion(ctx context.Context, text string, at time.Time) error {
	if err := s.SetSetting(ctx, keySuggestion, text); err != nil {
		return err
	}
	return s.SetSetting(ctx, keySuggestionTime, at.UTC().Format(time.RFC3339))
}

// Suggestion returns the cached AI suggestion and its timestamp. An empty
// text with zero time means no suggestion is cached.
func (s *Store) Suggestion(ctx context.Context) (string, time.Time, error) {
	text, err := s.GetSetting(ctx, keySuggestion)
	if err != nil || text == "" {
		return "", time.Time{}, err
	}
	raw, err := s.GetSetting(ctx, keySuggestionTime)
	if err != nil {
		return "", time.Time{}, err
	}
	at, parseErr := time.Parse(time.RFC3339, raw)
	if parseErr != nil {
		at = time.Time{}
	}
	return text, at, nil
}

// IncrementRefreshCount bumps the per-day AI refresh counter for the
// given day (YYYY-MM-DD) and returns the new count.
func (s *Store) IncrementRefreshCount(ctx context.Context, day string) (int64, error) {
	_, err := s.settings.ExecContext(ctx,
		`INSERT INTO daily_refresh_count (date, count) VALUES (?, 1)
		 ON CONFLICT(date) DO UPDATE SET count = count + 1`, day)
	if err != nil {
		return 0, fmt.Errorf("increment refresh count for %s: %w", day, err)
	}
	return s.RefreshCount(ctx, day)
}

// RefreshCount returns the refresh counter for the given day, 0 if unused.
func (s *Store) RefreshCount(ctx context.Context, day string) (int64, error) {
	var n int64
	err := s.settings.QueryRowContext(ctx,
		`SELECT count FROM daily_refresh_count WHERE date = ?`, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get refresh count for %s: %w", day, err)
	}
	return n, nil
}
