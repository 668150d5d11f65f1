package caption

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"inspirepixel/internal/model"
)

// Gemini captions images with a Google Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: modelName}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Caption sends the image inline with the caption prompt.
func (g *Gemini) Caption(ctx context.Context, image []byte, contentType string) (string, error) {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(0.2)

	resp, err := m.GenerateContent(ctx, genai.ImageData(imageFormat(contentType), image), genai.Text(Prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w: %w", model.ErrNetwork, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", model.ErrMalformedResponse)
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content", model.ErrMalformedResponse)
	}
	txt, ok := c.Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("%w: unexpected part %T", model.ErrMalformedResponse, c.Content.Parts[0])
	}
	return clean(string(txt))
}

// imageFormat maps a MIME type to the short format genai.ImageData expects.
func imageFormat(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.TrimSpace(ct)
	format := strings.TrimPrefix(ct, "image/")
	if format == "" || format == ct {
		return "jpeg"
	}
	return format
}
