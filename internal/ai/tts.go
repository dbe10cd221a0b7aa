package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SpeechRequest struct {
	Text         string
	LanguageCode string
	VoiceName    string
	SpeakingRate float64
	Pitch        float64
	VolumeGainDB float64
}

// TTSClient talks to the Cloud Text-to-Speech REST API and returns MP3 bytes.
type TTSClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewTTSClient(baseURL string, timeout time.Duration) *TTSClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TTSClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *TTSClient) Synthesize(ctx context.Context, apiKey string, in SpeechRequest) ([]byte, error) {
	reqBody := map[string]interface{}{
		"input": map[string]string{"text": in.Text},
		"voice": map[string]string{
			"languageCode": in.LanguageCode,
			"name":         in.VoiceName,
		},
		"audioConfig": map[string]interface{}{
			"audioEncoding": "MP3",
			"speakingRate":  in.SpeakingRate,
			"pitch":         in.Pitch,
			"volumeGainDb":  in.VolumeGainDB,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request failed: %w", err)
	}

	endpoint := c.baseURL + "/text:synthesize?key=" + url.QueryEscape(apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build tts request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError("tts", resp.StatusCode, raw)
	}

	var parsed struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse tts json failed: %w", err)
	}
	if parsed.AudioContent == "" {
		return nil, ErrEmptyResponse
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode tts audio failed: %w", err)
	}
	return audio, nil
}

type Voice struct {
	Name                   string   `json:"name"`
	LanguageCodes          []string `json:"language_codes"`
	SSMLGender             string   `json:"ssml_gender"`
	NaturalSampleRateHertz int      `json:"natural_sample_rate_hertz"`
}

// ListVoices returns the voices available for languageCode.
func (c *TTSClient) ListVoices(ctx context.Context, apiKey, languageCode string) ([]Voice, error) {
	query := url.Values{}
	query.Set("key", apiKey)
	if languageCode != "" {
		query.Set("languageCode", languageCode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build tts voices request failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts voices request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts voices response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError("tts", resp.StatusCode, raw)
	}

	var parsed struct {
		Voices []struct {
			Name                   string   `json:"name"`
			LanguageCodes          []string `json:"languageCodes"`
			SSMLGender             string   `json:"ssmlGender"`
			NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
		} `json:"voices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse tts voices json failed: %w", err)
	}
	voices := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, Voice{
			Name:                   v.Name,
			LanguageCodes:          v.LanguageCodes,
			SSMLGender:             v.SSMLGender,
			NaturalSampleRateHertz: v.NaturalSampleRateHertz,
		})
	}
	return voices, nil
}
