// Package caption turns image bytes into a one-sentence description using a
// remote vision model: the Hugging Face inference API, Ollama, OpenAI or
// Gemini.
package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"inspirepixel/internal/model"
)

// Prompt asks chat-style models for a caption in the same register as the
// image-captioning endpoint.
const Prompt = "Describe this photo in one short sentence. Reply with the sentence only."

const maxResponseBytes = 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Captioner generates a caption for an image.
type Captioner interface {
	Caption(ctx context.Context, image []byte, contentType string) (string, error)
}

func dataURL(image []byte, contentType string) string {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// postJSON sends payload to url and decodes a successful JSON response into
// out. Transport failures and non-2xx statuses wrap model.ErrNetwork; an
// undecodable body wraps model.ErrMalformedResponse.
func postJSON(ctx context.Context, client HTTPClient, url string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w: %w", model.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", model.ErrNetwork, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w: %w", model.ErrMalformedResponse, err)
	}
	return nil
}

// clean trims a model reply and rejects an empty one.
func clean(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"")
	if text == "" {
		return "", fmt.Errorf("%w: empty caption", model.ErrMalformedResponse)
	}
	return text, nil
}
