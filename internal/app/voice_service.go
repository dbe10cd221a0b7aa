package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"gopherai-insect/internal/ai"
	"gopherai-insect/internal/pkg/logger"
	"gopherai-insect/internal/pkg/resilience"
	"gopherai-insect/internal/storage/localfs"
)

const (
	minSpeakingRate = 0.25
	maxSpeakingRate = 4.0
	minPitch        = -20.0
	maxPitch        = 20.0
	minVolumeGain   = -96.0
	maxVolumeGain   = 16.0

	voiceListRetryAfter = time.Minute
)

type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, apiKey string, in ai.SpeechRequest) ([]byte, error)
	ListVoices(ctx context.Context, apiKey, languageCode string) ([]ai.Voice, error)
}

// VoiceDefaults is the voice profile used when a request leaves a setting out.
type VoiceDefaults struct {
	LanguageCode string
	VoiceName    string
	SpeakingRate float64
	Pitch        float64
}

type VoiceService struct {
	tts       SpeechSynthesizer
	apiKey    string
	executor  *resilience.Executor
	store     *localfs.Storage
	urlPrefix string
	defaults  VoiceDefaults
	log       *zap.Logger

	now func() time.Time

	voicesMu      sync.Mutex
	voices        []ai.Voice
	voicesErr     error
	voicesRetryAt time.Time
	voicesFetch   *voiceFetch
}

type voiceFetch struct {
	done   chan struct{}
	voices []ai.Voice
	err    error
}

type VoiceInput struct {
	Text         string
	Insect       map[string]string
	VoiceName    string
	SpeakingRate *float64
	Pitch        *float64
	VolumeGainDB *float64
}

type VoiceSettings struct {
	LanguageCode string  `json:"language_code"`
	SpeakingRate float64 `json:"speaking_rate"`
	Pitch        float64 `json:"pitch"`
	VolumeGainDB float64 `json:"volume_gain_db"`
}

type VoiceResult struct {
	Success       bool          `json:"success"`
	AudioFilename string        `json:"audio_filename"`
	AudioURL      string        `json:"audio_url"`
	AudioPath     string        `json:"audio_path"`
	VoiceName     string        `json:"voice_name"`
	TextLength    int           `json:"text_length"`
	Settings      VoiceSettings `json:"settings"`
	Timestamp     string        `json:"timestamp"`
}

func NewVoiceService(
	tts SpeechSynthesizer,
	apiKey string,
	executor *resilience.Executor,
	store *localfs.Storage,
	urlPrefix string,
	defaults VoiceDefaults,
	log *zap.Logger,
) *VoiceService {
	return &VoiceService{
		tts:       tts,
		apiKey:    strings.TrimSpace(apiKey),
		executor:  executor,
		store:     store,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		defaults:  defaults,
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

func (s *VoiceService) Configured() bool {
	return s.apiKey != ""
}

// Generate synthesizes speech for the text, or for a narration built from the
// insect fields when no text is given.
func (s *VoiceService) Generate(ctx context.Context, in VoiceInput) (*VoiceResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Insect) > 0 {
		text = VoiceSummary(in.Insect)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	settings := VoiceSettings{
		LanguageCode: s.defaults.LanguageCode,
		SpeakingRate: s.defaults.SpeakingRate,
		Pitch:        s.defaults.Pitch,
	}
	if in.SpeakingRate != nil {
		settings.SpeakingRate = *in.SpeakingRate
	}
	if in.Pitch != nil {
		settings.Pitch = *in.Pitch
	}
	if in.VolumeGainDB != nil {
		settings.VolumeGainDB = *in.VolumeGainDB
	}
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, ErrVoiceNotConfigured
	}

	voiceName := strings.TrimSpace(in.VoiceName)
	if voiceName == "" {
		voiceName = s.RecommendedVoice(ctx)
	}

	req := ai.SpeechRequest{
		Text:         text,
		LanguageCode: settings.LanguageCode,
		VoiceName:    voiceName,
		SpeakingRate: settings.SpeakingRate,
		Pitch:        settings.Pitch,
		VolumeGainDB: settings.VolumeGainDB,
	}
	var audio []byte
	call := func(ctx context.Context) error {
		out, err := s.tts.Synthesize(ctx, s.apiKey, req)
		if err != nil {
			return err
		}
		audio = out
		return nil
	}
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "tts.synthesize", call, ai.ClassifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, upstreamError("voice synthesis", err)
	}

	now := time.Now()
	name := fmt.Sprintf("voice_%s_%d.mp3", localfs.ShortID(), now.Unix())
	saved, err := s.store.SaveAs(name, audio)
	if err != nil {
		return nil, fmt.Errorf("save voice file failed: %w", err)
	}
	s.log.Info("voice generated",
		zap.String("file", saved.Name),
		zap.String("voice", voiceName),
		zap.Int("bytes", len(audio)),
	)

	return &VoiceResult{
		Success:       true,
		AudioFilename: saved.Name,
		AudioURL:      s.urlPrefix + "/" + saved.Name,
		AudioPath:     saved.Path,
		VoiceName:     voiceName,
		TextLength:    utf8.RuneCountInString(text),
		Settings:      settings,
		Timestamp:     now.Format(time.RFC3339),
	}, nil
}

func validateSettings(v VoiceSettings) error {
	switch {
	case v.SpeakingRate < minSpeakingRate || v.SpeakingRate > maxSpeakingRate:
		return fmt.Errorf("%w: speaking_rate must be between %.2f and %.1f", ErrInvalidInput, minSpeakingRate, maxSpeakingRate)
	case v.Pitch < minPitch || v.Pitch > maxPitch:
		return fmt.Errorf("%w: pitch must be between %.0f and %.0f", ErrInvalidInput, minPitch, maxPitch)
	case v.VolumeGainDB < minVolumeGain || v.VolumeGainDB > maxVolumeGain:
		return fmt.Errorf("%w: volume_gain_db must be between %.0f and %.0f", ErrInvalidInput, minVolumeGain, maxVolumeGain)
	}
	return nil
}

// Voices returns the voices for the configured language. A successful list is
// kept for the life of the service; a failure is remembered for
// voiceListRetryAfter. Concurrent callers share one upstream fetch.
func (s *VoiceService) Voices(ctx context.Context) ([]ai.Voice, error) {
	if !s.Configured() {
		return nil, ErrVoiceNotConfigured
	}

	s.voicesMu.Lock()
	if s.voices != nil {
		voices := s.voices
		s.voicesMu.Unlock()
		return voices, nil
	}
	if s.voicesErr != nil && s.now().Before(s.voicesRetryAt) {
		err := s.voicesErr
		s.voicesMu.Unlock()
		return nil, err
	}
	if f := s.voicesFetch; f != nil {
		s.voicesMu.Unlock()
		select {
		case <-f.done:
			return f.voices, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &voiceFetch{done: make(chan struct{})}
	s.voicesFetch = f
	s.voicesMu.Unlock()

	f.voices, f.err = s.fetchVoices(ctx)

	s.voicesMu.Lock()
	s.voicesFetch = nil
	switch {
	case f.err == nil:
		s.voices, s.voicesErr = f.voices, nil
	case ctx.Err() == nil:
		s.voicesErr = f.err
		s.voicesRetryAt = s.now().Add(voiceListRetryAfter)
	}
	s.voicesMu.Unlock()
	close(f.done)
	return f.voices, f.err
}

func (s *VoiceService) fetchVoices(ctx context.Context) ([]ai.Voice, error) {
	var voices []ai.Voice
	call := func(ctx context.Context) error {
		out, err := s.tts.ListVoices(ctx, s.apiKey, s.defaults.LanguageCode)
		if err != nil {
			return err
		}
		voices = out
		return nil
	}
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "tts.list_voices", call, ai.ClassifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, upstreamError("list voices", err)
	}
	if voices == nil {
		voices = []ai.Voice{}
	}
	return voices, nil
}

// RecommendedVoice prefers a female neural voice, then any female voice, then
// the configured default.
func (s *VoiceService) RecommendedVoice(ctx context.Context) string {
	voices, err := s.Voices(ctx)
	if err != nil {
		s.log.Debug("voice list unavailable, using default voice", zap.Error(err))
		return s.defaults.VoiceName
	}
	var female string
	for _, v := range voices {
		if !strings.EqualFold(v.SSMLGender, "FEMALE") {
			continue
		}
		if strings.Contains(v.Name, "Neural") {
			return v.Name
		}
		if female == "" {
			female = v.Name
		}
	}
	if female != "" {
		return female
	}
	return s.defaults.VoiceName
}

// Cleanup removes generated audio older than maxAge.
func (s *VoiceService) Cleanup(maxAge time.Duration) ([]string, error) {
	removed, err := s.store.CleanupOlderThan(".mp3", maxAge)
	if len(removed) > 0 {
		s.log.Info("audio cleanup", zap.Int("removed", len(removed)), zap.Duration("max_age", maxAge))
	}
	return removed, err
}

func (s *VoiceService) ServiceInfo() map[string]interface{} {
	profile := VoiceSettings{
		LanguageCode: s.defaults.LanguageCode,
		SpeakingRate: s.defaults.SpeakingRate,
		Pitch:        s.defaults.Pitch,
	}
	return map[string]interface{}{
		"service_name":   "KidsInsectVoice",
		"configured":     s.Configured(),
		"language_code":  s.defaults.LanguageCode,
		"default_voice":  s.defaults.VoiceName,
		"audio_format":   "mp3",
		"insect_profile": profile,
	}
}
