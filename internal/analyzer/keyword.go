package analyzer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
)

// KeywordProvider is the deterministic terminal fallback. It never fails:
// when nothing matches it returns expense / Other / amount 0. Keyword sets
// are bilingual (English and Indonesian).
type KeywordProvider struct{}

func NewKeywordProvider() *KeywordProvider { return &KeywordProvider{} }

func (p *KeywordProvider) Name() string { return "keyword" }

var incomeKeywords = []string{
	"salary", "paycheck", "income", "bonus", "received", "refund", "sold",
	"gaji", "terima", "dapat", "jual", "pemasukan",
}

var salaryKeywords = []string{"salary", "paycheck", "gaji"}

// categoryKeywords is ordered; the first category with a hit wins.
var categoryKeywords = []struct {
	category core.Category
	words    []string
}{
	{core.CategoryGroceries, []string{
		"grocery", "groceries", "supermarket", "sembako",
		"pasar", "indomaret", "alfamart", "belanja bulanan",
	}},
	{core.CategoryDining, []string{
		"breakfast", "lunch", "dinner", "coffee", "restaurant", "snack",
		"makan", "kopi", "sarapan", "jajan", "warung", "nasi",
	}},
	{core.CategoryTransport, []string{
		"taxi", "bus", "train", "fuel", "parking", "uber", "grab", "gojek",
		"ojek", "bensin", "parkir", "tol",
	}},
	{core.CategoryHousing, []string{
		"rent", "mortgage", "apartment", "sewa", "kos", "kontrakan",
	}},
	{core.CategoryBills, []string{
		"bill", "bills", "electricity", "internet", "wifi", "phone credit",
		"pulsa", "token", "listrik", "tagihan", "pdam",
	}},
	{core.CategoryHealthcare, []string{
		"doctor", "medicine", "hospital", "pharmacy", "clinic",
		"dokter", "obat", "apotek", "rumah sakit", "klinik",
	}},
	{core.CategoryEducation, []string{
		"tuition", "course", "school", "book", "sekolah", "kursus", "buku", "kuliah",
	}},
	{core.CategoryShopping, []string{
		"shoes", "shirt", "clothes", "mall", "shopee", "tokopedia", "lazada",
		"baju", "sepatu",
	}},
	{core.CategoryPersonal, []string{
		"haircut", "salon", "gym", "skincare", "barber", "potong rambut",
	}},
}

var (
	// Amounts with an explicit currency marker win over bare numbers.
	currencyAmountRE = regexp.MustCompile(`(?i)(?:rp\.?|idr|\$|usd)\s*([0-9][0-9.,]*)`)
	bareAmountRE     = regexp.MustCompile(`[0-9][0-9.,]*`)
)

func (p *KeywordProvider) AnalyzeText(_ context.Context, req TextRequest) (core.Candidate, error) {
	text := strings.ToLower(req.Text)

	candidate := core.Candidate{
		Type:        core.Expense,
		Category:    core.CategoryOther,
		Amount:      extractAmount(text),
		Description: strings.TrimSpace(req.Text),
		Date:        req.Now.UTC(),
	}

	if containsAny(text, incomeKeywords) {
		candidate.Type = core.Income
		candidate.Category = core.CategoryIncome
		if containsAny(text, salaryKeywords) {
			candidate.Category = core.CategorySalary
		}
		return candidate, nil
	}

	for _, entry := range categoryKeywords {
		if containsAny(text, entry.words) {
			candidate.Category = entry.category
			break
		}
	}
	return candidate, nil
}

// AnalyzeImage has no pixels to match keywords against; it still succeeds
// with the default candidate so the chain never ends without a result.
func (p *KeywordProvider) AnalyzeImage(_ context.Context, req ImageRequest) (core.Candidate, error) {
	return core.Candidate{
		Type:     core.Expense,
		Category: core.CategoryOther,
		Date:     req.Now.UTC(),
	}, nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// extractAmount prefers the first currency-marked number; with only bare
// numbers it takes the largest, so "2 days ago I spent 50" yields 50.
func extractAmount(text string) float64 {
	if m := currencyAmountRE.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmountToken(m[1]); ok {
			return v
		}
	}

	best := 0.0
	for _, token := range bareAmountRE.FindAllString(text, -1) {
		if v, ok := parseAmountToken(token); ok && v > best {
			best = v
		}
	}
	return best
}

// parseAmountToken normalizes separator conventions: "1,234.56" and
// "1.234,56" are decimals with thousands groups, "50.000" and "10,000"
// are thousands-grouped integers, "50.5" and "12.34" are plain decimals.
func parseAmountToken(token string) (float64, bool) {
	token = strings.Trim(token, ".,")
	if token == "" {
		return 0, false
	}

	lastSep := strings.LastIndexAny(token, ".,")
	if lastSep == -1 {
		v, err := strconv.ParseFloat(token, 64)
		return v, err == nil
	}

	frac := token[lastSep+1:]
	if len(frac) == 3 {
		// Trailing group of three digits reads as a thousands group
		// (Indonesian "50.000" and English "10,000" alike).
		digits := stripSeparators(token)
		v, err := strconv.ParseFloat(digits, 64)
		return v, err == nil
	}

	intDigits := stripSeparators(token[:lastSep])
	v, err := strconv.ParseFloat(intDigits+"."+frac, 64)
	return v, err == nil
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", "")
}
