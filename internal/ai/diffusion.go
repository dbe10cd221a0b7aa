package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// DiffusionRequest holds the text-to-image sampling inputs.
type DiffusionRequest struct {
	Prompt         string
	NegativePrompt string
	InferenceSteps int
	GuidanceScale  float64
	Width          int
	Height         int
}

// DiffusionClient calls a hosted text-to-image inference endpoint that
// answers with raw image bytes.
type DiffusionClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewDiffusionClient(baseURL, model string, timeout time.Duration) *DiffusionClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &DiffusionClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

func (c *DiffusionClient) Model() string {
	return c.model
}

// TextToImage returns the generated image bytes and their content type.
func (c *DiffusionClient) TextToImage(ctx context.Context, token string, in DiffusionRequest) ([]byte, string, error) {
	params := map[string]interface{}{}
	if in.NegativePrompt != "" {
		params["negative_prompt"] = in.NegativePrompt
	}
	if in.InferenceSteps > 0 {
		params["num_inference_steps"] = in.InferenceSteps
	}
	if in.GuidanceScale > 0 {
		params["guidance_scale"] = in.GuidanceScale
	}
	if in.Width > 0 && in.Height > 0 {
		params["width"] = in.Width
		params["height"] = in.Height
	}
	reqBody := map[string]interface{}{
		"inputs":     in.Prompt,
		"parameters": params,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("marshal diffusion request failed: %w", err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(c.model, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("build diffusion request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("diffusion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read diffusion response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, "", newHTTPStatusError("diffusion", resp.StatusCode, raw)
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("diffusion returned %q instead of an image: %s", contentType, truncate(raw))
	}
	if len(raw) == 0 {
		return nil, "", ErrEmptyResponse
	}
	return raw, contentType, nil
}

func truncate(raw []byte) string {
	if len(raw) > maxErrorBody {
		return string(raw[:maxErrorBody]) + "..."
	}
	return string(raw)
}
