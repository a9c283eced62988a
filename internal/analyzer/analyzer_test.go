package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
)

type stubProvider struct {
	name      string
	candidate core.Candidate
	err       error
	calls     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) AnalyzeText(context.Context, TextRequest) (core.Candidate, error) {
	s.calls++
	return s.candidate, s.err
}

func (s *stubProvider) AnalyzeImage(context.Context, ImageRequest) (core.Candidate, error) {
	s.calls++
	return s.candidate, s.err
}

func TestChainPrimarySuccess(t *testing.T) {
	primary := &stubProvider{name: "primary", candidate: core.Candidate{Amount: 10, Category: core.CategoryDining, Type: core.Expense}}
	secondary := &stubProvider{name: "secondary"}
	chain := NewChain(primary, secondary)

	got, err := chain.AnalyzeText(context.Background(), TextRequest{Text: "lunch 10", Now: time.Now()})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.Provider != "primary" || got.UsedFallback {
		t.Errorf("result = %+v, want primary without fallback flag", got)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestChainFallsThroughToSecondary(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("boom")}
	secondary := &stubProvider{name: "secondary", candidate: core.Candidate{Amount: 5, Category: core.CategoryOther, Type: core.Expense}}
	chain := NewChain(primary, secondary)

	got, err := chain.AnalyzeText(context.Background(), TextRequest{Text: "x", Now: time.Now()})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.Provider != "secondary" || !got.UsedFallback {
		t.Errorf("result = %+v, want secondary with fallback flag", got)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, secondary.calls)
	}
}

func TestChainTerminalKeywordNeverFails(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("network down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("auth failed")}
	chain := NewChain(primary, secondary, NewKeywordProvider())

	got, err := chain.AnalyzeText(context.Background(), TextRequest{
		Text: "I spent $50 for groceries",
		Now:  time.Now(),
	})
	if err != nil {
		t.Fatalf("chain with keyword terminal must not fail: %v", err)
	}
	if got.Provider != "keyword" || !got.UsedFallback {
		t.Errorf("result = %+v, want keyword fallback", got)
	}
	if got.Candidate.Category != core.CategoryGroceries || got.Candidate.Amount != 50 {
		t.Errorf("candidate = %+v", got.Candidate)
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(&stubProvider{name: "only", err: errors.New("down")})
	if _, err := chain.AnalyzeText(context.Background(), TextRequest{Text: "x", Now: time.Now()}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}
