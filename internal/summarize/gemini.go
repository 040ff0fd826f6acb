package summarize

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// generator is the part of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Gemini API.
type Gemini struct {
	models generator
	model  string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiWithModels(client.Models, model), nil
}

func newGeminiWithModels(models generator, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{models: models, model: model}
}

// Complete implements Completer.
func (g *Gemini) Complete(ctx context.Context, req Request) (Reply, error) {
	temperature := float32(req.Temperature)
	topP := float32(req.TopP)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if req.TopP > 0 {
		cfg.TopP = &topP
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Reply{}, fmt.Errorf("gemini generate %s: %w", g.model, err)
	}
	return geminiReply(resp)
}

func geminiReply(resp *genai.GenerateContentResponse) (Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Reply{}, errors.New("empty response from gemini")
	}
	var blocks []ContentBlock
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			blocks = append(blocks, ContentBlock{Type: "text", Text: part.Text})
		}
	}
	return Blocks(blocks), nil
}
