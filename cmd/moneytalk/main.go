package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Naandalist/moneytalk-sub000/internal/analyzer"
	"github.com/Naandalist/moneytalk-sub000/internal/backup"
	"github.com/Naandalist/moneytalk-sub000/internal/cloud"
	"github.com/Naandalist/moneytalk-sub000/internal/config"
	"github.com/Naandalist/moneytalk-sub000/internal/core"
	"github.com/Naandalist/moneytalk-sub000/internal/period"
	"github.com/Naandalist/moneytalk-sub000/internal/storage"
)

const usage = `usage: moneytalk <command> [args]

commands:
  add <expense|income> <amount> <category> [description...]
  analyze <text...>          extract a transaction from free text and save it
  analyze-image <jpeg-file>  extract a transaction from a receipt photo and save it
  transcribe <audio-file>    transcribe a voice note, then analyze and save it
  delete <id>                delete one transaction
  recent                     show the latest transactions
  balance                    show income, expenses, and net balance
  categories [week|month|year]
                             spending per category for the period (default month)
  backup                     snapshot the local database files
  restore [tx-file] [settings-file]
                             restore snapshots; with no args, list them
  cloud-backup               replace the cloud copy with the local data
  cloud-restore              replace the local data with the cloud copy
  sync                       cloud backup, rate-limited to once per interval
  status                     show last sync time and cloud row counts
  clear                      delete all local transactions
`

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("MONEYTALK_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	// Snapshot commands operate on the closed database files.
	manager := backup.NewManager(cfg.DataDir)
	switch command {
	case "backup":
		if !manager.ManualBackup(ctx) {
			return fmt.Errorf("backup failed")
		}
		fmt.Println("backup created")
		return nil
	case "restore":
		return cmdRestore(ctx, manager, args)
	}

	store, err := storage.Open(cfg.DataDir, cfg.LegacyDataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	app := &app{cfg: cfg, store: store}

	switch command {
	case "add":
		return app.add(ctx, args)
	case "analyze":
		return app.analyze(ctx, args)
	case "analyze-image":
		return app.analyzeImage(ctx, args)
	case "transcribe":
		return app.transcribe(ctx, args)
	case "delete":
		return app.delete(ctx, args)
	case "recent":
		return app.recent(ctx)
	case "balance":
		return app.balance(ctx)
	case "categories":
		return app.categories(ctx, args)
	case "cloud-backup":
		return app.cloudBackup(ctx)
	case "cloud-restore":
		return app.cloudRestore(ctx)
	case "sync":
		return app.sync(ctx)
	case "status":
		return app.status(ctx)
	case "clear":
		if err := store.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Println("all transactions deleted")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

type app struct {
	cfg   *config.Config
	store *storage.Store
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: add <expense|income> <amount> <category> [description...]")
	}

	txType := core.ParseType(args[0])
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}

	tx := core.Transaction{
		Amount:      amount,
		Category:    core.NormalizeCategory(args[2]),
		Type:        txType,
		Description: strings.Join(args[3:], " "),
		Date:        time.Now(),
	}
	id, err := a.store.Insert(ctx, tx)
	if err != nil {
		return err
	}

	fmt.Printf("saved #%d: %s %s %.2f %s\n", id, tx.Type, tx.Category, amount, tx.Description)
	return nil
}

func (a *app) analyze(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: analyze <text...>")
	}
	text := strings.Join(args, " ")

	chain, err := a.buildChain(ctx)
	if err != nil {
		return err
	}

	now := period.Now(a.cfg.Timezone)
	analysis, err := chain.AnalyzeText(ctx, analyzer.TextRequest{
		Text:     text,
		Now:      now,
		Timezone: a.cfg.Timezone,
	})
	if err != nil {
		return fmt.Errorf("analyze text: %w", err)
	}

	tx := analysis.Candidate.Transaction(now)
	id, err := a.store.Insert(ctx, tx)
	if err != nil {
		return err
	}

	fmt.Printf("saved #%d: %s %s %.2f %s\n", id, tx.Type, tx.Category, tx.Magnitude(), tx.Description)
	if analysis.UsedFallback {
		fmt.Printf("(analyzed with fallback provider %s)\n", analysis.Provider)
	}
	return nil
}

func (a *app) analyzeImage(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: analyze-image <jpeg-file>")
	}
	jpeg, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	chain, err := a.buildChain(ctx)
	if err != nil {
		return err
	}

	now := period.Now(a.cfg.Timezone)
	analysis, err := chain.AnalyzeImage(ctx, analyzer.ImageRequest{
		JPEG:     jpeg,
		Now:      now,
		Timezone: a.cfg.Timezone,
	})
	if err != nil {
		return fmt.Errorf("analyze image: %w", err)
	}

	tx := analysis.Candidate.Transaction(now)
	if a.cfg.CloudEnabled() {
		svc, err := a.cloudService()
		if err != nil {
			return err
		}
		url, err := svc.UploadReceiptImage(ctx, filepath.Base(args[0]), jpeg)
		if err != nil {
			// The transaction is still worth keeping without the receipt.
			slog.WarnContext(ctx, "Receipt upload failed", "error", err)
		} else {
			tx.ImageURL = url
		}
	}

	id, err := a.store.Insert(ctx, tx)
	if err != nil {
		return err
	}

	fmt.Printf("saved #%d: %s %s %.2f %s\n", id, tx.Type, tx.Category, tx.Magnitude(), tx.Description)
	if tx.ImageURL != "" {
		fmt.Printf("receipt: %s\n", tx.ImageURL)
	}
	return nil
}

func (a *app) transcribe(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: transcribe <audio-file>")
	}
	if a.cfg.TranscribeURL == "" {
		return fmt.Errorf("transcription is not configured; set TRANSCRIBE_URL")
	}

	audio, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer audio.Close()

	transcriber := analyzer.NewTranscriber(
		a.cfg.TranscribeURL, a.cfg.OpenAIAPIKey,
		a.cfg.TranscribeModel, a.cfg.TranscribeLanguage,
		&http.Client{Timeout: a.cfg.HTTPTimeout})
	text, err := transcriber.Transcribe(ctx, filepath.Base(args[0]), audio)
	if err != nil {
		return fmt.Errorf("transcribe audio: %w", err)
	}

	fmt.Printf("transcript: %s\n", text)
	return a.analyze(ctx, []string{text})
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", args[0], err)
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("deleted #%d\n", id)
	return nil
}

// buildChain assembles the provider chain from whatever is configured.
// The keyword matcher is always last, so analysis never fails outright.
func (a *app) buildChain(ctx context.Context) (*analyzer.Chain, error) {
	httpClient := &http.Client{Timeout: a.cfg.HTTPTimeout}

	var providers []analyzer.Provider
	if a.cfg.OpenAIAPIKey != "" {
		providers = append(providers, analyzer.NewOpenAIProvider(
			a.cfg.OpenAIBaseURL, a.cfg.OpenAIAPIKey, a.cfg.OpenAIModel, httpClient))
	}
	if a.cfg.GeminiAPIKey != "" {
		gemini, err := analyzer.NewGeminiProvider(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	providers = append(providers, analyzer.NewKeywordProvider())

	return analyzer.NewChain(providers...), nil
}

func (a *app) recent(ctx context.Context) error {
	txs, err := a.store.Recent(ctx, a.cfg.RecentLimit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("no transactions yet")
		return nil
	}

	loc := period.Location(a.cfg.Timezone)
	for _, tx := range txs {
		fmt.Printf("#%-4d %s  %-8s %-11s %10.2f  %s\n",
			tx.ID, tx.Date.In(loc).Format("2006-01-02 15:04"),
			tx.Type, tx.Category, tx.Magnitude(), tx.Description)
	}
	return nil
}

func (a *app) balance(ctx context.Context) error {
	b, err := a.store.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("income:   %12.2f\n", b.Income)
	fmt.Printf("expenses: %12.2f\n", b.Expenses)
	fmt.Printf("net:      %12.2f\n", b.Income-b.Expenses)
	return nil
}

func (a *app) categories(ctx context.Context, args []string) error {
	p := period.Month
	if len(args) > 0 {
		var err error
		if p, err = period.ParsePeriod(args[0]); err != nil {
			return err
		}
	}

	totals, err := a.store.ByCategory(ctx, p, a.cfg.Timezone)
	if err != nil {
		return err
	}
	if len(totals) == 0 {
		fmt.Printf("no expenses this %s\n", p)
		return nil
	}

	for _, t := range totals {
		fmt.Printf("%-12s %12.2f\n", t.Category, t.Total)
	}
	return nil
}

func (a *app) cloudService() (*cloud.Service, error) {
	if !a.cfg.CloudEnabled() {
		return nil, fmt.Errorf("cloud sync is not configured; set SUPABASE_URL and SUPABASE_ANON_KEY")
	}
	client := cloud.NewClient(a.cfg.SupabaseURL, a.cfg.SupabaseKey,
		&http.Client{Timeout: a.cfg.HTTPTimeout})
	return cloud.NewService(client, a.store, cloud.Config{
		AutoSyncInterval: a.cfg.AutoSyncInterval,
		Bucket:           a.cfg.SupabaseBucket,
	}), nil
}

func (a *app) cloudBackup(ctx context.Context) error {
	svc, err := a.cloudService()
	if err != nil {
		return err
	}
	txs, err := a.store.All(ctx)
	if err != nil {
		return err
	}

	result := svc.BackupAll(ctx, txs)
	if !result.Success {
		return fmt.Errorf("%s: %s", result.Message, result.Err)
	}
	fmt.Println(result.Message)
	return nil
}

func (a *app) cloudRestore(ctx context.Context) error {
	svc, err := a.cloudService()
	if err != nil {
		return err
	}

	txs, err := svc.RestoreAll(ctx)
	if err != nil {
		return err
	}
	if err := a.store.ClearAll(ctx); err != nil {
		return err
	}
	for _, tx := range txs {
		if _, err := a.store.Insert(ctx, tx); err != nil {
			return fmt.Errorf("restore transaction %d: %w", tx.ID, err)
		}
	}

	fmt.Printf("restored %d transactions from cloud\n", len(txs))
	return nil
}

func (a *app) sync(ctx context.Context) error {
	svc, err := a.cloudService()
	if err != nil {
		return err
	}
	txs, err := a.store.All(ctx)
	if err != nil {
		return err
	}

	result := svc.AutoSync(ctx, txs)
	if !result.Success {
		return fmt.Errorf("%s: %s", result.Message, result.Err)
	}
	if result.Skipped {
		fmt.Println(result.Message)
		return nil
	}
	fmt.Println(result.Message)
	return nil
}

func (a *app) status(ctx context.Context) error {
	svc, err := a.cloudService()
	if err != nil {
		return err
	}

	status, err := svc.SyncStatus(ctx)
	if err != nil {
		return err
	}
	if status == nil {
		fmt.Println("never synced")
		return nil
	}

	loc := period.Location(a.cfg.Timezone)
	fmt.Printf("last sync:          %s\n", status.LastSyncTime.In(loc).Format("2006-01-02 15:04:05"))
	fmt.Printf("cloud transactions: %d\n", status.TransactionCount)
	fmt.Printf("cloud settings:     %d\n", status.SettingsCount)
	return nil
}

func cmdRestore(ctx context.Context, manager *backup.Manager, args []string) error {
	if len(args) == 0 {
		backups, err := manager.ListBackups()
		if err != nil {
			return err
		}
		if len(backups.Transactions) == 0 && len(backups.Settings) == 0 {
			fmt.Println("no backups found")
			return nil
		}
		fmt.Println("transaction snapshots:")
		for _, name := range backups.Transactions {
			fmt.Printf("  %s  (%s)\n", name, manager.DisplayTime(name))
		}
		fmt.Println("settings snapshots:")
		for _, name := range backups.Settings {
			fmt.Printf("  %s  (%s)\n", name, manager.DisplayTime(name))
		}
		return nil
	}

	txFile := args[0]
	settingsFile := ""
	if len(args) > 1 {
		settingsFile = args[1]
	}
	if !manager.RestoreBackup(ctx, txFile, settingsFile) {
		return fmt.Errorf("restore failed")
	}
	fmt.Println("restore completed")
	return nil
}
