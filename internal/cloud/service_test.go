package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
	"github.com/Naandalist/moneytalk-sub000/internal/storage"
)

// fakeRemote is an in-memory PostgREST stand-in recording call order.
type fakeRemote struct {
	mu           sync.Mutex
	transactions []remoteTransaction
	settings     map[string]remoteSetting
	calls        []string
	failAll      bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{settings: make(map[string]remoteSetting)}
}

func (f *fakeRemote) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Header.Get("apikey") == "" {
			t.Error("missing apikey header")
		}
		f.calls = append(f.calls, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/rest/v1/"))

		if f.failAll {
			http.Error(w, `{"message":"service unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		switch {
		case table == "transactions" && r.Method == http.MethodDelete:
			f.transactions = nil
			w.WriteHeader(http.StatusNoContent)
		case table == "transactions" && r.Method == http.MethodPost:
			var rows []remoteTransaction
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &rows); err != nil {
				t.Errorf("bad insert body: %v", err)
			}
			f.transactions = append(f.transactions, rows...)
			w.WriteHeader(http.StatusCreated)
		case table == "transactions" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(f.transactions)
		case table == "transactions" && r.Method == http.MethodHead:
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(f.transactions)))
			w.WriteHeader(http.StatusOK)
		case table == "settings" && r.Method == http.MethodPost:
			var row remoteSetting
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &row); err != nil {
				t.Errorf("bad settings body: %v", err)
			}
			f.settings[row.Key] = row
			w.WriteHeader(http.StatusCreated)
		case table == "settings" && r.Method == http.MethodHead:
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", len(f.settings)))
			w.WriteHeader(http.StatusOK)
		case table == "user_profiles" || table == "ai_suggestions" || table == "daily_refresh_count":
			if r.Method == http.MethodGet {
				io.WriteString(w, "[]")
				return
			}
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func newTestService(t *testing.T) (*Service, *fakeRemote, *storage.Store) {
	t.Helper()

	store, err := storage.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	remote := newFakeRemote()
	srv := httptest.NewServer(remote.handler(t))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "anon-key", srv.Client())
	svc := NewService(client, store, Config{})
	return svc, remote, store
}

func sampleTransactions() []core.Transaction {
	date := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	return []core.Transaction{
		{ID: 1, Amount: -50, Category: core.CategoryGroceries, Type: core.Expense, Description: "weekly shop", Date: date},
		{ID: 2, Amount: 1000, Category: core.CategorySalary, Type: core.Income, Date: date.Add(time.Hour)},
	}
}

func TestBackupAllDeleteThenInsert(t *testing.T) {
	svc, remote, _ := newTestService(t)

	result := svc.BackupAll(context.Background(), sampleTransactions())
	if !result.Success {
		t.Fatalf("backup failed: %+v", result)
	}
	if result.Count != 2 {
		t.Errorf("count = %d, want 2", result.Count)
	}

	var deleteIdx, insertIdx = -1, -1
	for i, call := range remote.calls {
		switch call {
		case "DELETE transactions":
			deleteIdx = i
		case "POST transactions":
			insertIdx = i
		}
	}
	if deleteIdx == -1 || insertIdx == -1 {
		t.Fatalf("missing delete or insert: %v", remote.calls)
	}
	if deleteIdx > insertIdx {
		t.Errorf("insert ran before delete: %v", remote.calls)
	}
	if len(remote.transactions) != 2 {
		t.Errorf("remote rows = %d, want 2", len(remote.transactions))
	}
	for _, row := range remote.transactions {
		if _, err := uuid.Parse(row.UserID); err != nil {
			t.Errorf("row not scoped to a uuid identity: %q", row.UserID)
		}
	}
}

func TestBackupThenRestoreRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	want := sampleTransactions()

	if result := svc.BackupAll(ctx, want); !result.Success {
		t.Fatalf("backup: %+v", result)
	}

	got, err := svc.RestoreAll(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("restored %d rows, want %d", len(got), len(want))
	}

	byID := make(map[int64]core.Transaction)
	for _, tx := range got {
		byID[tx.ID] = tx
	}
	for _, w := range want {
		g, ok := byID[w.ID]
		if !ok {
			t.Errorf("row %d missing from restore", w.ID)
			continue
		}
		if g.Amount != w.Amount || g.Category != w.Category || g.Type != w.Type ||
			g.Description != w.Description || !g.Date.Equal(w.Date) {
			t.Errorf("round-trip mismatch: got %+v, want %+v", g, w)
		}
	}
}

func TestBackupFailureReturnsResult(t *testing.T) {
	svc, remote, _ := newTestService(t)
	remote.failAll = true

	result := svc.BackupAll(context.Background(), sampleTransactions())
	if result.Success {
		t.Fatal("backup against failing remote must not report success")
	}
	if result.Message == "" || result.Err == "" {
		t.Errorf("failure result missing message/error: %+v", result)
	}
}

func TestAutoSyncRateLimited(t *testing.T) {
	svc, remote, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	first := svc.AutoSync(ctx, sampleTransactions())
	if !first.Success || first.Skipped {
		t.Fatalf("first auto sync: %+v", first)
	}

	writesAfterFirst := countCalls(remote, "POST transactions")

	svc.now = func() time.Time { return base.Add(30 * time.Minute) }
	second := svc.AutoSync(ctx, sampleTransactions())
	if !second.Success || !second.Skipped {
		t.Fatalf("second auto sync within interval should skip: %+v", second)
	}
	if got := countCalls(remote, "POST transactions"); got != writesAfterFirst {
		t.Errorf("remote writes = %d, want %d (no extra write)", got, writesAfterFirst)
	}

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	third := svc.AutoSync(ctx, sampleTransactions())
	if !third.Success || third.Skipped {
		t.Fatalf("auto sync after interval should run: %+v", third)
	}
	if got := countCalls(remote, "POST transactions"); got <= writesAfterFirst {
		t.Error("expected a new remote write after the interval elapsed")
	}
}

func countCalls(remote *fakeRemote, call string) int {
	remote.mu.Lock()
	defer remote.mu.Unlock()
	n := 0
	for _, c := range remote.calls {
		if c == call {
			n++
		}
	}
	return n
}

func TestSyncStatus(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	status, err := svc.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != nil {
		t.Fatalf("status before any sync = %+v, want nil", status)
	}

	if result := svc.AutoSync(ctx, sampleTransactions()); !result.Success {
		t.Fatalf("sync: %+v", result)
	}

	status, err = svc.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("status after sync: %v", err)
	}
	if status == nil {
		t.Fatal("status after sync is nil")
	}
	if status.TransactionCount != 2 {
		t.Errorf("transaction count = %d, want 2", status.TransactionCount)
	}
	if status.LastSyncTime.IsZero() {
		t.Error("last sync time not recorded")
	}

	last, err := store.LastSyncTime(ctx)
	if err != nil || last.IsZero() {
		t.Errorf("last sync not persisted: %v, %v", last, err)
	}
}

func TestInitializeStableIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Initialize(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	second, err := svc.Initialize(ctx)
	if err != nil {
		t.Fatalf("re-initialize: %v", err)
	}
	if first != second {
		t.Errorf("identity changed across calls: %q vs %q", first, second)
	}
}

func TestUploadReceiptImage(t *testing.T) {
	store, err := storage.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	var uploadedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/storage/v1/object/") && r.Method == http.MethodPost {
			uploadedPath = r.URL.Path
			if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("content type = %q", ct)
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		// profile upsert from Initialize
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, "anon-key", srv.Client()), store, Config{Bucket: "receipts"})
	url, err := svc.UploadReceiptImage(context.Background(), "receipt-1.jpg", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(url, "/storage/v1/object/public/receipts/") || !strings.HasSuffix(url, "/receipt-1.jpg") {
		t.Errorf("public url = %q", url)
	}
	if !strings.HasPrefix(uploadedPath, "/storage/v1/object/receipts/") {
		t.Errorf("upload path = %q", uploadedPath)
	}
}
