// Package gemini adapts the Gemini generative API to the assistant's Generator.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// ErrEmptyResponse is returned when the model produced no text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Generator calls one Gemini model.
type Generator struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// New dials the Gemini API with apiKey.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model, maxTokens: 600}, nil
}

// Close releases the client.
func (g *Generator) Close() error { return g.client.Close() }

// Generate runs prompt under the system instruction and returns the first text part.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.6)
	m.SetMaxOutputTokens(g.maxTokens)
	if system != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockLowAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockLowAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockLowAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockLowAndAbove},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return firstText(resp)
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				if s := strings.TrimSpace(string(text)); s != "" {
					return s, nil
				}
			}
		}
	}
	return "", ErrEmptyResponse
}
