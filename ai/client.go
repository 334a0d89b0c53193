package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/protoscan/interfaces"
	"github.com/giygas/protoscan/logging"
	"github.com/giygas/protoscan/medicationparser/entities"
	"github.com/giygas/protoscan/metrics"
)

// maxContextRunes bounds the document text sent for context analysis
const maxContextRunes = 15000

const source = "vertex"

var (
	ErrDisabled      = errors.New("ai model is not configured")
	ErrEmptyResponse = errors.New("ai model returned no text")
	ErrNoJSON        = errors.New("ai response contains no JSON")
	ErrRefused       = errors.New("ai model refused to answer")
)

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

const contextPrompt = `Analyze the following clinical protocol text. Do two things:
1. Identify the main disease or clinical context the protocol describes.
2. Extract ALL medicinal products mentioned in the text together with their usage and level of evidence (if stated).

Return ONE JSON object with this structure:
{
  "disease_context": "...",
  "drug_list": [
    {"inn_protocol": "...", "usage_protocol": "...", "loe_protocol": "..."}
  ]
}

Text to analyze:
---
%s
---`

const detailsPrompt = `Analyze the following drug in the context of the disease "%s".

Drug: %s
Usage: %s

Return ONE JSON object with this structure:
{
  "inn_english": "...",
  "brief_description": "...",
  "system_loe": "..."
}

Fields:
- inn_english: the International Nonproprietary Name (INN) in English.
- brief_description: a very short (1-2 sentences) description of the drug's role in treating the disease.
- system_loe: your estimate of the level of evidence for this indication (for example "Class I (A)", "Class IIb (B)").`

var _ interfaces.Translator = (*Client)(nil)

// Client runs the two prompt types against a Generator. A nil Generator
// disables the client; every call then returns ErrDisabled.
type Client struct {
	gen Generator
}

func NewClient(gen Generator) *Client {
	return &Client{gen: gen}
}

// Enabled reports whether a model is configured
func (c *Client) Enabled() bool {
	return c != nil && c.gen != nil
}

// AnalyzeDocument returns the disease context and the drug list of a protocol text
func (c *Client) AnalyzeDocument(ctx context.Context, text string) (*entities.DocumentContext, error) {
	var result entities.DocumentContext
	if err := c.ask(ctx, fmt.Sprintf(contextPrompt, truncateRunes(text, maxContextRunes)), &result); err != nil {
		return nil, fmt.Errorf("document context: %w", err)
	}
	result.DiseaseContext = strings.TrimSpace(result.DiseaseContext)
	return &result, nil
}

// DrugDetails returns the English INN, description and evidence level for one drug
func (c *Client) DrugDetails(ctx context.Context, name, usage, disease string) (*entities.DrugDetails, error) {
	var result entities.DrugDetails
	if err := c.ask(ctx, fmt.Sprintf(detailsPrompt, disease, name, usage), &result); err != nil {
		return nil, fmt.Errorf("drug details for %q: %w", name, err)
	}
	result.INNEnglish = strings.TrimSpace(result.INNEnglish)
	result.BriefDescription = strings.TrimSpace(result.BriefDescription)
	result.SystemLoE = strings.TrimSpace(result.SystemLoE)
	return &result, nil
}

func (c *Client) ask(ctx context.Context, prompt string, out any) error {
	if !c.Enabled() {
		metrics.ObserveLookup(source, metrics.OutcomeSkip)
		return ErrDisabled
	}

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		metrics.ObserveLookup(source, metrics.OutcomeError)
		return err
	}

	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			metrics.ObserveLookup(source, metrics.OutcomeMiss)
			logging.Warn("AI model refused to answer", "response", text)
			return ErrRefused
		}
	}

	raw, ok := ExtractJSON(text)
	if !ok {
		metrics.ObserveLookup(source, metrics.OutcomeMiss)
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		metrics.ObserveLookup(source, metrics.OutcomeError)
		logging.Debug("Undecodable AI response", "json", raw, "error", err)
		return fmt.Errorf("failed to decode ai response: %w", err)
	}

	metrics.ObserveLookup(source, metrics.OutcomeHit)
	return nil
}

// ExtractJSON cuts the outermost JSON object, or failing that array, out of a
// model answer that may be wrapped in markdown fences or prose
func ExtractJSON(text string) (string, bool) {
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			return text[start : end+1], true
		}
	}
	return "", false
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
