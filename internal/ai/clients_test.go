package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGeminiGenerateContent(t *testing.T) {
	var gotBody struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mime_type"`
					Data     string `json:"data"`
				} `json:"inline_data"`
			} `json:"parts"`
		} `json:"contents"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-goog-api-key"); got != "gm-key" {
			t.Errorf("api key header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"🐛 곤충 이름: "},{"text":"무당벌레"}]}}]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(srv.URL+"/v1beta/", "gemini-2.0-flash", time.Second)
	text, err := client.GenerateContent(context.Background(), "gm-key", "describe", InlineImage{MimeType: "image/png", Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("GenerateContent() error = %v", err)
	}
	if text != "🐛 곤충 이름: 무당벌레" {
		t.Fatalf("text = %q", text)
	}

	parts := gotBody.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "describe" || parts[1].InlineData == nil {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[1].InlineData.MimeType != "image/png" || parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Fatalf("inline data = %+v", parts[1].InlineData)
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "status",
			status: http.StatusServiceUnavailable,
			body:   `{"error":"overloaded"}`,
			check: func(err error) bool {
				var se *HTTPStatusError
				return errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable
			},
		},
		{
			name:   "no candidates",
			status: http.StatusOK,
			body:   `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			check:  func(err error) bool { return errors.Is(err, ErrEmptyResponse) },
		},
		{
			name:   "blank text",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
			check:  func(err error) bool { return errors.Is(err, ErrEmptyResponse) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewGeminiClient(srv.URL, "m", time.Second)
			_, err := client.GenerateContent(context.Background(), "k", "p", InlineImage{MimeType: "image/jpeg"})
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDiffusionTextToImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/org/sd" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer hf-token" {
			t.Errorf("authorization = %q", got)
		}
		var body struct {
			Inputs     string                 `json:"inputs"`
			Parameters map[string]interface{} `json:"parameters"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Inputs != "cute ladybug" || body.Parameters["num_inference_steps"] != float64(20) {
			t.Errorf("body = %+v", body)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	client := NewDiffusionClient(srv.URL+"/models", "org/sd", time.Second)
	data, ct, err := client.TextToImage(context.Background(), "hf-token", DiffusionRequest{Prompt: "cute ladybug", InferenceSteps: 20})
	if err != nil {
		t.Fatalf("TextToImage() error = %v", err)
	}
	if string(data) != "PNGDATA" || ct != "image/png" {
		t.Fatalf("data=%q ct=%q", data, ct)
	}
}

func TestDiffusionRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"Model is loading"}`))
	}))
	defer srv.Close()

	client := NewDiffusionClient(srv.URL, "m", time.Second)
	if _, _, err := client.TextToImage(context.Background(), "t", DiffusionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for json body")
	}
}

func TestTTSSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text:synthesize" || r.URL.Query().Get("key") != "tts key" {
			t.Errorf("url = %s", r.URL.String())
		}
		var body struct {
			Input       map[string]string      `json:"input"`
			Voice       map[string]string      `json:"voice"`
			AudioConfig map[string]interface{} `json:"audioConfig"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Input["text"] != "안녕" || body.Voice["name"] != "ko-KR-Standard-A" || body.AudioConfig["audioEncoding"] != "MP3" {
			t.Errorf("body = %+v", body)
		}
		_, _ = w.Write([]byte(`{"audioContent":"` + base64.StdEncoding.EncodeToString([]byte("ID3mp3")) + `"}`))
	}))
	defer srv.Close()

	client := NewTTSClient(srv.URL+"/v1", time.Second)
	audio, err := client.Synthesize(context.Background(), "tts key", SpeechRequest{
		Text: "안녕", LanguageCode: "ko-KR", VoiceName: "ko-KR-Standard-A", SpeakingRate: 0.9, Pitch: 2,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3mp3" {
		t.Fatalf("audio = %q", audio)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{name: "429", err: &HTTPStatusError{StatusCode: 429}, retryable: true, recordFailure: true},
		{name: "503", err: &HTTPStatusError{StatusCode: 503}, retryable: true, recordFailure: true},
		{name: "400", err: &HTTPStatusError{StatusCode: 400}, retryable: false, recordFailure: false},
		{name: "401", err: &HTTPStatusError{StatusCode: 401}, retryable: false, recordFailure: false},
		{name: "network", err: timeoutErr{}, retryable: true, recordFailure: true},
		{name: "canceled", err: context.Canceled, retryable: false, recordFailure: false},
		{name: "other", err: errors.New("parse"), retryable: false, recordFailure: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Retryable != tt.retryable || got.RecordFailure != tt.recordFailure {
				t.Fatalf("ClassifyError() = %+v", got)
			}
		})
	}
}

func TestTTSListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices" || r.URL.Query().Get("languageCode") != "ko-KR" {
			t.Errorf("url = %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"voices":[{"name":"ko-KR-Neural2-A","languageCodes":["ko-KR"],"ssmlGender":"FEMALE","naturalSampleRateHertz":24000}]}`))
	}))
	defer srv.Close()

	voices, err := NewTTSClient(srv.URL, time.Second).ListVoices(context.Background(), "k", "ko-KR")
	if err != nil {
		t.Fatalf("ListVoices() error = %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "ko-KR-Neural2-A" || voices[0].SSMLGender != "FEMALE" {
		t.Fatalf("voices = %+v", voices)
	}
}
