package analyzer

import (
	"strings"
	"time"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
)

func categoryList() string {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// promptHeader states both the local and UTC clock so the model can
// resolve relative phrases ("yesterday", "kemarin") on the user's calendar
// without timezone skew.
func promptHeader(now time.Time, tz string) string {
	if tz == "" {
		tz = now.Location().String()
	}
	var b strings.Builder
	b.WriteString("Current local time: " + now.Format("2006-01-02T15:04:05-07:00") + "\n")
	b.WriteString("Current UTC time: " + now.UTC().Format("2006-01-02T15:04:05") + "Z\n")
	b.WriteString("User timezone: " + tz + "\n")
	return b.String()
}

func textPrompt(req TextRequest) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Extract exactly one financial transaction from the user's sentence (English or Indonesian).\n\n")
	b.WriteString(promptHeader(req.Now, req.Timezone))
	b.WriteString("\nAllowed categories (use EXACTLY one): " + categoryList() + "\n\n")
	b.WriteString("Respond with STRICT JSON only. No Markdown, no code fences, no extra text.\n")
	b.WriteString(`{"type": "expense" or "income", "category": string, "amount": number, "date": "YYYY-MM-DDTHH:MM:SS", "timezone": string, "description": string}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- amount is a non-negative number without currency symbols.\n")
	b.WriteString("- Resolve relative time phrases (\"yesterday\", \"2 days ago\", \"this morning\", \"kemarin\", \"tadi pagi\") against the current LOCAL time above. Return the resolved LOCAL date/time and its timezone.\n")
	b.WriteString("- If no time is mentioned, use the current local time.\n")
	b.WriteString("- If the category is unclear, use \"Other\".\n\n")
	b.WriteString("Sentence: " + req.Text + "\n")
	return b.String()
}

func imagePrompt(req ImageRequest) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Analyze the attached receipt photo and extract one transaction.\n\n")
	b.WriteString(promptHeader(req.Now, req.Timezone))
	b.WriteString("\nAllowed categories (use EXACTLY one): " + categoryList() + "\n\n")
	b.WriteString("Respond with STRICT JSON only. No Markdown, no code fences, no extra text.\n")
	b.WriteString(`{"type": "expense" or "income", "category": string, "amount": number, "date": "YYYY-MM-DDTHH:MM:SS", "timezone": string, "description": string, "items": [string]}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- amount is the receipt total as a non-negative number.\n")
	b.WriteString("- Use the purchase date printed on the receipt if readable, otherwise the current local time above.\n")
	b.WriteString("- description is the merchant name; items lists the purchased items.\n")
	b.WriteString("- If the category is unclear, use \"Other\".\n")
	return b.String()
}
