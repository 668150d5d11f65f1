package caption

import (
	"context"
	"net/http"
)

// DefaultHuggingFaceURL is the image-to-text model used when none is configured.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/nlpconnect/vit-gpt2-image-captioning"

// HuggingFace captions images through a Hugging Face inference endpoint.
type HuggingFace struct {
	client HTTPClient
	url    string
	apiKey string
}

// NewHuggingFace creates a captioner posting to url with apiKey as bearer token.
func NewHuggingFace(client HTTPClient, url, apiKey string) *HuggingFace {
	if url == "" {
		url = DefaultHuggingFaceURL
	}
	return &HuggingFace{client: client, url: url, apiKey: apiKey}
}

type hfResult struct {
	GeneratedText string `json:"generated_text"`
	Caption       string `json:"caption"`
}

// Caption submits the image as a base64 data URL and returns the first
// generated caption.
func (h *HuggingFace) Caption(ctx context.Context, image []byte, contentType string) (string, error) {
	header := http.Header{}
	if h.apiKey != "" {
		header.Set("Authorization", "Bearer "+h.apiKey)
	}

	var results []hfResult
	payload := map[string]string{"inputs": dataURL(image, contentType)}
	if err := postJSON(ctx, h.client, h.url, header, payload, &results); err != nil {
		return "", err
	}
	if len(results) == 0 {
		return clean("")
	}
	if results[0].GeneratedText != "" {
		return clean(results[0].GeneratedText)
	}
	return clean(results[0].Caption)
}
