package caption

import (
	"context"
	"net/http"
)

// DefaultOpenAIURL is the chat completions endpoint.
const DefaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI captions images with an OpenAI vision-capable chat model.
type OpenAI struct {
	client HTTPClient
	url    string
	apiKey string
	model  string
}

// NewOpenAI creates a captioner for the chat completions API.
func NewOpenAI(client HTTPClient, apiKey, model string) *OpenAI {
	return &OpenAI{client: client, url: DefaultOpenAIURL, apiKey: apiKey, model: model}
}

// Caption sends the prompt and the image as a data URL and returns the first
// choice.
func (o *OpenAI) Caption(ctx context.Context, image []byte, contentType string) (string, error) {
	payload := map[string]any{
		"model": o.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": Prompt},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL(image, contentType)}},
				},
			},
		},
		"max_tokens":  60,
		"temperature": 0.2,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+o.apiKey)

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.url, header, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return clean("")
	}
	return clean(resp.Choices[0].Message.Content)
}
