package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

// Closed category vocabulary. Anything else coming back from a model or
// a remote row is coerced to CategoryOther before it reaches storage.
const (
	CategoryGroceries  Category = "Groceries"
	CategoryDining     Category = "Dining"
	CategoryHousing    Category = "Housing"
	CategoryTransport  Category = "Transport"
	CategoryHealthcare Category = "Healthcare"
	CategoryPersonal   Category = "Personal"
	CategoryEducation  Category = "Education"
	CategoryIncome     Category = "Income"
	CategorySalary     Category = "Salary"
	CategoryBills      Category = "Bills"
	CategoryShopping   Category = "Shopping"
	CategoryOther      Category = "Other"
)

type (
	TransactionType string

	Category string

	// Transaction is the canonical persisted record. Date is always UTC;
	// conversion to the user's zone happens at display only.
	Transaction struct {
		ID          int64
		Amount      float64
		Category    Category
		Type        TransactionType
		Description string
		Date        time.Time
		ImageURL    string
	}

	// Candidate is an unsaved, analyzer-produced transaction awaiting user
	// confirmation. Amount is a non-negative magnitude; the store decides
	// the persisted sign from Type.
	Candidate struct {
		Amount      float64
		Category    Category
		Type        TransactionType
		Description string
		Date        time.Time
		ImageURL    string
	}

	// CategoryTotal is an expense aggregate for one category.
	CategoryTotal struct {
		Category Category
		Total    float64
	}

	// Balance reports per-type sums; Expenses is always an absolute value
	// regardless of the sign the rows were written with.
	Balance struct {
		Income   float64
		Expenses float64
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCategory = errors.New("invalid category")
)

// Categories lists the closed vocabulary in display order.
func Categories() []Category {
	return []Category{
		CategoryGroceries, CategoryDining, CategoryHousing, CategoryTransport,
		CategoryHealthcare, CategoryPersonal, CategoryEducation, CategoryIncome,
		CategorySalary, CategoryBills, CategoryShopping, CategoryOther,
	}
}

// NormalizeCategory maps arbitrary input onto the closed vocabulary.
// Matching is case-insensitive; anything unrecognized becomes Other.
func NormalizeCategory(s string) Category {
	trimmed := strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(trimmed, string(c)) {
			return c
		}
	}
	return CategoryOther
}

// ParseType maps arbitrary input onto the type enum, defaulting to Expense.
func ParseType(s string) TransactionType {
	if strings.EqualFold(strings.TrimSpace(s), string(Income)) {
		return Income
	}
	return Expense
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

// SignedAmount converts a magnitude into the stored sign convention:
// expenses negative, income positive.
func (t TransactionType) SignedAmount(magnitude float64) float64 {
	magnitude = math.Abs(magnitude)
	if t == Expense {
		return -magnitude
	}
	return magnitude
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Magnitude returns the absolute amount for display and aggregation.
func (t Transaction) Magnitude() float64 {
	return math.Abs(t.Amount)
}

// Transaction converts a confirmed candidate into a store-ready record.
// Missing fields are defaulted (never null): empty description stays "",
// a zero date becomes now, an unknown category becomes Other.
func (c Candidate) Transaction(now time.Time) Transaction {
	t := Transaction{
		Amount:      math.Abs(c.Amount),
		Category:    c.Category,
		Type:        c.Type,
		Description: c.Description,
		Date:        c.Date.UTC(),
		ImageURL:    c.ImageURL,
	}
	if !t.Type.Valid() {
		t.Type = Expense
	}
	if !t.Category.Valid() {
		t.Category = CategoryOther
	}
	if c.Date.IsZero() {
		t.Date = now.UTC()
	}
	return t
}
