package analyzer

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Naandalist/moneytalk-sub000/internal/core"
)

// GeminiProvider is the secondary model backend, attempted only when the
// primary fails. Same response contract as the primary.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) AnalyzeText(ctx context.Context, req TextRequest) (core.Candidate, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: textPrompt(req)}},
		},
	}
	raw, err := p.generate(ctx, contents)
	if err != nil {
		return core.Candidate{}, err
	}
	return parseModelResponse(raw, req.Now, req.Timezone)
}

func (p *GeminiProvider) AnalyzeImage(ctx context.Context, req ImageRequest) (core.Candidate, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: imagePrompt(req)},
				{
					InlineData: &genai.Blob{
						MIMEType: "image/jpeg",
						Data:     req.JPEG,
					},
				},
			},
		},
	}
	raw, err := p.generate(ctx, contents)
	if err != nil {
		return core.Candidate{}, err
	}
	return parseModelResponse(raw, req.Now, req.Timezone)
}

func (p *GeminiProvider) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return raw, nil
}
