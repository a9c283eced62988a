// Package analyzer turns free-text transcripts and receipt images into
// transaction candidates. Providers are tried in priority order: a primary
// model backend, an optional secondary backend, and a deterministic
// keyword matcher that always succeeds.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
)

// TextRequest carries a transcript plus the caller's clock. Relative time
// phrases are resolved against Now in Timezone, never against server time.
type TextRequest struct {
	Text     string
	Now      time.Time // caller-local now
	Timezone string    // IANA identifier, may be empty
}

// ImageRequest carries receipt photo bytes (JPEG).
type ImageRequest struct {
	JPEG     []byte
	Now      time.Time
	Timezone string
}

// Provider is one analysis backend.
type Provider interface {
	Name() string
	AnalyzeText(ctx context.Context, req TextRequest) (core.Candidate, error)
	AnalyzeImage(ctx context.Context, req ImageRequest) (core.Candidate, error)
}

// Analysis is a successful extraction plus which provider produced it, so
// callers can surface "used backup provider" state.
type Analysis struct {
	Candidate    core.Candidate
	Provider     string
	UsedFallback bool
}

// Chain tries providers in order and returns the first success. With the
// keyword matcher as the terminal provider the chain cannot fail on text
// input.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) AnalyzeText(ctx context.Context, req TextRequest) (Analysis, error) {
	for i, p := range c.providers {
		candidate, err := p.AnalyzeText(ctx, req)
		if err != nil {
			slog.WarnContext(ctx, "Analysis provider failed, trying next",
				"provider", p.Name(), "error", err)
			continue
		}
		return Analysis{Candidate: candidate, Provider: p.Name(), UsedFallback: i > 0}, nil
	}
	return Analysis{}, fmt.Errorf("all %d analysis providers failed", len(c.providers))
}

func (c *Chain) AnalyzeImage(ctx context.Context, req ImageRequest) (Analysis, error) {
	for i, p := range c.providers {
		candidate, err := p.AnalyzeImage(ctx, req)
		if err != nil {
			slog.WarnContext(ctx, "Image analysis provider failed, trying next",
				"provider", p.Name(), "error", err)
			continue
		}
		return Analysis{Candidate: candidate, Provider: p.Name(), UsedFallback: i > 0}, nil
	}
	return Analysis{}, fmt.Errorf("all %d analysis providers failed", len(c.providers))
}
