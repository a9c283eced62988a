package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const suggestionCacheKey = "suggestion"

type remoteSuggestion struct {
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at"`
}

type remoteRefreshCount struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Count  int64  `json:"count"`
}

// SaveSuggestion stores an AI-generated spending suggestion locally and
// mirrors it remotely, keyed by device identity.
func (s *Service) SaveSuggestion(ctx context.Context, text string) error {
	id, err := s.Initialize(ctx)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.store.SaveSuggestion(ctx, text, now); err != nil {
		return fmt.Errorf("cache suggestion locally: %w", err)
	}
	s.suggestions.Set(suggestionCacheKey, text)

	row := remoteSuggestion{
		UserID:    id.String(),
		Content:   text,
		UpdatedAt: now.Format(time.RFC3339),
	}
	if err := s.client.upsert(ctx, tableSuggestions, "user_id", row); err != nil {
		// The local copy is the one the UI reads; remote mirror is best
		// effort.
		slog.WarnContext(ctx, "Remote suggestion upsert failed", "error", err)
	}
	return nil
}

// FetchSuggestion returns the current spending suggestion: in-memory
// cache first, then the remote row, then the local settings copy when the
// remote is unreachable.
func (s *Service) FetchSuggestion(ctx context.Context) (string, error) {
	if cached, ok := s.suggestions.Get(suggestionCacheKey); ok {
		return cached, nil
	}

	id, err := s.Initialize(ctx)
	if err != nil {
		return "", err
	}

	var rows []remoteSuggestion
	query := "user_id=eq." + id.String() + "&select=content,updated_at"
	if err := s.client.selectRows(ctx, tableSuggestions, query, &rows); err != nil {
		slog.WarnContext(ctx, "Remote suggestion fetch failed, using local copy", "error", err)
		text, _, localErr := s.store.Suggestion(ctx)
		if localErr != nil {
			return "", fmt.Errorf("fetch suggestion: %w", err)
		}
		return text, nil
	}

	if len(rows) == 0 {
		text, _, err := s.store.Suggestion(ctx)
		return text, err
	}

	s.suggestions.Set(suggestionCacheKey, rows[0].Content)
	return rows[0].Content, nil
}

// IncrementDailyRefresh bumps the per-day AI refresh counter locally and
// mirrors the new value to the remote row keyed by (user_id, date).
func (s *Service) IncrementDailyRefresh(ctx context.Context, day string) (int64, error) {
	count, err := s.store.IncrementRefreshCount(ctx, day)
	if err != nil {
		return 0, err
	}

	id, err := s.Initialize(ctx)
	if err != nil {
		// Local counter already advanced; identity trouble only blocks
		// the mirror.
		slog.WarnContext(ctx, "Refresh counter not mirrored", "error", err)
		return count, nil
	}

	row := remoteRefreshCount{UserID: id.String(), Date: day, Count: count}
	if err := s.client.upsert(ctx, tableRefreshCount, "user_id,date", row); err != nil {
		slog.WarnContext(ctx, "Remote refresh counter upsert failed", "error", err)
	}
	return count, nil
}

// DailyRefreshCount reads the local per-day counter.
func (s *Service) DailyRefreshCount(ctx context.Context, day string) (int64, error) {
	return s.store.RefreshCount(ctx, day)
}
