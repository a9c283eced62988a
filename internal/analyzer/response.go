package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
	"github.com/Naandalist/moneytalk-sub000/internal/period"
)

// modelPayload is the strict JSON contract shared by both model backends.
// json.Number rejects string-typed amounts, which per the contract is a
// provider failure rather than a partial success.
type modelPayload struct {
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Amount      json.Number `json:"amount"`
	Date        string      `json:"date"`
	Timezone    string      `json:"timezone"`
	Description string      `json:"description"`
	Items       []string    `json:"items"`
}

var candidateDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// stripCodeFences removes Markdown fencing and surrounding prose that
// models emit despite instructions, keeping the outermost JSON object.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}

// parseModelResponse validates a raw model reply against the contract.
// Malformed JSON and non-numeric amounts fail the provider. An unknown
// category on an otherwise valid reply is coerced to Other. A missing or
// unreadable date resolves to the caller's local now.
func parseModelResponse(raw string, now time.Time, tz string) (core.Candidate, error) {
	clean := stripCodeFences(raw)
	if clean == "" {
		return core.Candidate{}, fmt.Errorf("empty model response")
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return core.Candidate{}, fmt.Errorf("malformed model response: %w", err)
	}

	if payload.Amount == "" {
		return core.Candidate{}, fmt.Errorf("model response missing amount")
	}
	amount, err := payload.Amount.Float64()
	if err != nil {
		return core.Candidate{}, fmt.Errorf("non-numeric amount %q: %w", payload.Amount, err)
	}

	candidate := core.Candidate{
		Amount:      math.Abs(amount),
		Type:        core.ParseType(payload.Type),
		Category:    core.NormalizeCategory(payload.Category),
		Description: strings.TrimSpace(payload.Description),
		Date:        resolveDate(payload, now, tz),
	}

	if candidate.Description == "" && len(payload.Items) > 0 {
		candidate.Description = strings.Join(payload.Items, ", ")
	}

	return candidate, nil
}

// resolveDate interprets the model's local date/time in the timezone the
// model reported (falling back to the caller's), returning UTC.
func resolveDate(payload modelPayload, now time.Time, tz string) time.Time {
	dateStr := strings.TrimSpace(payload.Date)
	if dateStr == "" {
		return now.UTC()
	}

	loc := period.Location(payload.Timezone)
	if payload.Timezone == "" {
		loc = period.Location(tz)
	}

	for _, layout := range candidateDateLayouts {
		if t, err := time.ParseInLocation(layout, dateStr, loc); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
