package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// InlineImage is an image attached to a multimodal prompt.
type InlineImage struct {
	MimeType string
	Data     []byte
}

type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewGeminiClient(baseURL, model string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

func (c *GeminiClient) Model() string {
	return c.model
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// GenerateContent sends prompt plus img and returns the concatenated text of
// the first candidate.
func (c *GeminiClient) GenerateContent(ctx context.Context, apiKey, prompt string, img InlineImage) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []geminiContent{{
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: img.MimeType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				}},
			},
		}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request failed: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("build gemini request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", newHTTPStatusError("gemini", resp.StatusCode, raw)
	}

	var parsed struct {
		Candidates []struct {
			Content geminiContent `json:"content"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason"`
		} `json:"promptFeedback"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse gemini json failed: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		if reason := parsed.PromptFeedback.BlockReason; reason != "" {
			return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, reason)
		}
		return "", ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
