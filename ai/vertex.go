// Package ai asks a generative model for the disease context of a protocol and
// for per-drug details (English INN, short description, evidence level).
package ai

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const systemPrompt = "You are a clinical pharmacology assistant. You read clinical protocols and answer with a single valid JSON value and nothing else."

// Generator returns the model's text answer for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VertexGenerator is a Generator backed by a Gemini model on Vertex AI
type VertexGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewVertexGenerator creates the Vertex AI client and configures the model for JSON output
func NewVertexGenerator(ctx context.Context, projectID, region, modelName string) (*VertexGenerator, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("projectID and region cannot be empty")
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	return &VertexGenerator{client: client, model: model}, nil
}

// Generate sends prompt to the model and concatenates the text parts of the first candidate
func (g *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func (g *VertexGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
