package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
	"github.com/Naandalist/moneytalk-sub000/internal/period"
)

// dateLayout is second-precision RFC3339 in UTC. Fixed width, so string
// comparison in SQL matches chronological order.
const dateLayout = time.RFC3339

// Insert persists a transaction and returns its assigned id. The store
// owns the sign convention: the persisted amount is derived from Type
// (expense negative, income positive) regardless of the caller's sign.
func (s *Store) Insert(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}

	res, err := s.transactions.ExecContext(ctx,
		`INSERT INTO transactions (amount, category, type, description, date, image_url)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Type.SignedAmount(t.Amount), string(t.Category), string(t.Type),
		t.Description, t.Date.UTC().Format(dateLayout), t.ImageURL)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Magnitude())

	return id, nil
}

// Update rewrites a stored transaction's mutable fields, re-applying the
// sign convention.
func (s *Store) Update(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	res, err := s.transactions.ExecContext(ctx,
		`UPDATE transactions
		 SET amount = ?, category = ?, type = ?, description = ?, date = ?, image_url = ?
		 WHERE id = ?`,
		t.Type.SignedAmount(t.Amount), string(t.Category), string(t.Type),
		t.Description, t.Date.UTC().Format(dateLayout), t.ImageURL, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update transaction %d: no such row", t.ID)
	}
	return nil
}

// Delete physically removes a transaction. There is no soft delete.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.transactions.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// ClearAll removes every transaction. Callers gate this on confirmation;
// the store executes immediately.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.transactions.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	slog.InfoContext(ctx, "All transactions cleared")
	return nil
}

// Recent returns the most recent limit transactions by date descending.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := s.transactions.QueryContext(ctx,
		`SELECT id, amount, category, type, description, date, image_url
		 FROM transactions ORDER BY date DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()
	return s.scanTransactions(ctx, rows)
}

// All returns the full table by date descending.
func (s *Store) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.transactions.QueryContext(ctx,
		`SELECT id, amount, category, type, description, date, image_url
		 FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query all transactions: %w", err)
	}
	defer rows.Close()
	return s.scanTransactions(ctx, rows)
}

// ByPeriod returns transactions dated on or after the period window start
// computed on the local calendar of tz.
func (s *Store) ByPeriod(ctx context.Context, p period.Period, tz string) ([]core.Transaction, error) {
	since := period.WindowStart(p, tz).Format(dateLayout)
	rows, err := s.transactions.QueryContext(ctx,
		`SELECT id, amount, category, type, description, date, image_url
		 FROM transactions WHERE date >= ? ORDER BY date DESC, id DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query transactions by period: %w", err)
	}
	defer rows.Close()
	return s.scanTransactions(ctx, rows)
}

// ByCategory aggregates expense totals per category within the period
// window, ordered by descending absolute total. Income rows are excluded.
// ABS is applied at the query layer: historical rows carry both sign
// conventions and must aggregate identically.
func (s *Store) ByCategory(ctx context.Context, p period.Period, tz string) ([]core.CategoryTotal, error) {
	since := period.WindowStart(p, tz).Format(dateLayout)
	rows, err := s.transactions.QueryContext(ctx,
		`SELECT category, SUM(ABS(amount)) AS total
		 FROM transactions
		 WHERE type = 'expense' AND date >= ?
		 GROUP BY category
		 ORDER BY total DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var (
			category string
			total    float64
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, core.CategoryTotal{
			Category: core.NormalizeCategory(category),
			Total:    total,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// Balance sums amounts per type. Both sums take ABS at the query layer so
// the result is sign-convention agnostic.
func (s *Store) Balance(ctx context.Context) (core.Balance, error) {
	var b core.Balance
	err := s.transactions.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN ABS(amount) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN ABS(amount) ELSE 0 END), 0)
		 FROM transactions`).Scan(&b.Income, &b.Expenses)
	if err != nil {
		return core.Balance{}, fmt.Errorf("query balance: %w", err)
	}
	return b, nil
}

// Count returns the number of stored transactions.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.transactions.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanTransactions maps rows into domain records. A row with an
// unparseable date is logged and skipped, never fatal to the caller.
func (s *Store) scanTransactions(ctx context.Context, rows rowScanner) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			category   string
			typ        string
			dateString string
		)
		if err := rows.Scan(&t.ID, &t.Amount, &category, &typ, &t.Description, &dateString, &t.ImageURL); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		date, err := time.Parse(dateLayout, dateString)
		if err != nil {
			slog.WarnContext(ctx, "Skipping transaction with invalid stored date",
				"id", t.ID, "date", dateString, "error", err)
			continue
		}

		t.Category = core.NormalizeCategory(category)
		t.Type = core.ParseType(typ)
		t.Date = date.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
