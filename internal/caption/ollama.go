package caption

import (
	"context"
	"encoding/base64"
	"strings"
)

// DefaultOllamaURL is the address of a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama captions images with a local multimodal model.
type Ollama struct {
	client HTTPClient
	url    string
	model  string
}

// NewOllama creates a captioner for the Ollama server at url.
func NewOllama(client HTTPClient, url, model string) *Ollama {
	if url == "" {
		url = DefaultOllamaURL
	}
	return &Ollama{client: client, url: strings.TrimRight(url, "/"), model: model}
}

// Caption sends the image to /api/generate and returns the model response.
func (o *Ollama) Caption(ctx context.Context, image []byte, _ string) (string, error) {
	payload := map[string]any{
		"model":  o.model,
		"prompt": Prompt,
		"images": []string{base64.StdEncoding.EncodeToString(image)},
		"stream": false,
		"options": map[string]any{
			"temperature": 0.2,
		},
	}

	var resp struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, o.client, o.url+"/api/generate", nil, payload, &resp); err != nil {
		return "", err
	}
	return clean(resp.Response)
}
