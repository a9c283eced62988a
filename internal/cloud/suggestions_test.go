package cloud

import (
	"context"
	"testing"
)

func TestSuggestionSaveAndFetch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SaveSuggestion(ctx, "cut back on dining out"); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := svc.FetchSuggestion(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != "cut back on dining out" {
		t.Errorf("fetched %q", got)
	}
}

func TestFetchSuggestionFallsBackToLocal(t *testing.T) {
	svc, remote, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SaveSuggestion(ctx, "set a weekly budget"); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Drop the in-memory copy so the next fetch has to go remote.
	svc.suggestions.Delete(suggestionCacheKey)
	remote.failAll = true

	got, err := svc.FetchSuggestion(ctx)
	if err != nil {
		t.Fatalf("fetch with remote down: %v", err)
	}
	if got != "set a weekly budget" {
		t.Errorf("local fallback returned %q", got)
	}
}

func TestIncrementDailyRefresh(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := svc.IncrementDailyRefresh(ctx, "2026-08-28")
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	count, err := svc.DailyRefreshCount(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("read count: %v", err)
	}
	if count != 3 {
		t.Errorf("stored count = %d, want 3", count)
	}

	other, err := svc.DailyRefreshCount(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("read other day: %v", err)
	}
	if other != 0 {
		t.Errorf("other day count = %d, want 0", other)
	}
}
