package core

import (
	"testing"
	"time"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
	}{
		{"Groceries", CategoryGroceries},
		{"groceries", CategoryGroceries},
		{"  DINING  ", CategoryDining},
		{"Salary", CategorySalary},
		{"Food", CategoryOther},
		{"", CategoryOther},
		{"makanan", CategoryOther},
	}

	for _, tt := range tests {
		if got := NormalizeCategory(tt.input); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	if got := ParseType("income"); got != Income {
		t.Errorf("ParseType(income) = %q", got)
	}
	if got := ParseType("INCOME"); got != Income {
		t.Errorf("ParseType(INCOME) = %q", got)
	}
	if got := ParseType("expense"); got != Expense {
		t.Errorf("ParseType(expense) = %q", got)
	}
	if got := ParseType("garbage"); got != Expense {
		t.Errorf("ParseType(garbage) = %q, want default expense", got)
	}
}

func TestSignedAmount(t *testing.T) {
	if got := Expense.SignedAmount(50); got != -50 {
		t.Errorf("expense SignedAmount(50) = %v, want -50", got)
	}
	if got := Expense.SignedAmount(-50); got != -50 {
		t.Errorf("expense SignedAmount(-50) = %v, want -50", got)
	}
	if got := Income.SignedAmount(1000); got != 1000 {
		t.Errorf("income SignedAmount(1000) = %v, want 1000", got)
	}
	if got := Income.SignedAmount(-1000); got != 1000 {
		t.Errorf("income SignedAmount(-1000) = %v, want 1000", got)
	}
}

func TestCandidateTransactionDefaults(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	c := Candidate{Amount: 12.5}
	tx := c.Transaction(now)

	if tx.Type != Expense {
		t.Errorf("default type = %q, want expense", tx.Type)
	}
	if tx.Category != CategoryOther {
		t.Errorf("default category = %q, want Other", tx.Category)
	}
	if !tx.Date.Equal(now) {
		t.Errorf("default date = %v, want now", tx.Date)
	}
	if tx.Description != "" {
		t.Errorf("default description = %q, want empty", tx.Description)
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("defaulted transaction should validate: %v", err)
	}
}

func TestCandidateTransactionKeepsFields(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	date := time.Date(2026, 8, 27, 19, 30, 0, 0, loc)

	c := Candidate{
		Amount:      -75,
		Category:    CategoryDining,
		Type:        Income,
		Description: "dinner refund",
		Date:        date,
	}
	tx := c.Transaction(time.Now())

	if tx.Amount != 75 {
		t.Errorf("amount = %v, want magnitude 75", tx.Amount)
	}
	if tx.Date.Location() != time.UTC {
		t.Errorf("date not normalized to UTC: %v", tx.Date)
	}
	if !tx.Date.Equal(date) {
		t.Errorf("date instant changed: %v vs %v", tx.Date, date)
	}
	if tx.Category != CategoryDining || tx.Type != Income || tx.Description != "dinner refund" {
		t.Errorf("fields not preserved: %+v", tx)
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Amount:   10,
		Category: CategoryBills,
		Type:     Expense,
		Date:     time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	bad := valid
	bad.Type = "transfer"
	if err := bad.Validate(); err != ErrInvalidType {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}

	bad = valid
	bad.Category = "Food"
	if err := bad.Validate(); err != ErrInvalidCategory {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}

	bad = valid
	bad.Date = time.Time{}
	if err := bad.Validate(); err != ErrInvalidDate {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}
