package app

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"go.uber.org/zap"

	"gopherai-insect/internal/ai"
	"gopherai-insect/internal/pkg/logger"
	"gopherai-insect/internal/pkg/resilience"
	"gopherai-insect/internal/storage/localfs"
)

type ImageGenerator interface {
	TextToImage(ctx context.Context, token string, in ai.DiffusionRequest) ([]byte, string, error)
	Model() string
}

// SamplingConfig are the diffusion parameters applied to every request.
type SamplingConfig struct {
	InferenceSteps int
	GuidanceScale  float64
	Width          int
	Height         int
}

type CharacterService struct {
	generator ImageGenerator
	token     string
	executor  *resilience.Executor
	store     *localfs.Storage
	urlPrefix string
	sampling  SamplingConfig
	log       *zap.Logger
}

type CharacterInput struct {
	Keyword    string
	NameEN     string
	NameKO     string
	Style      string
	Traits     CharacterTraits
	SourceFile string
}

type CharacterResult struct {
	Success              bool            `json:"success"`
	ImageURL             string          `json:"image_url"`
	ImagePath            string          `json:"image_path"`
	ImageFilename        string          `json:"image_filename"`
	Keyword              string          `json:"keyword"`
	Prompt               string          `json:"prompt"`
	StyleApplied         string          `json:"style_applied"`
	CharacterDescription string          `json:"character_description"`
	FeaturesUsed         CharacterTraits `json:"features_used"`
	SourceImage          string          `json:"source_image,omitempty"`
	ModelVersion         string          `json:"model_version"`
	GenerationTime       string          `json:"generation_time"`
	Status               string          `json:"status"`
}

func NewCharacterService(
	generator ImageGenerator,
	token string,
	executor *resilience.Executor,
	store *localfs.Storage,
	urlPrefix string,
	sampling SamplingConfig,
	log *zap.Logger,
) *CharacterService {
	return &CharacterService{
		generator: generator,
		token:     strings.TrimSpace(token),
		executor:  executor,
		store:     store,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		sampling:  sampling,
		log:       logger.OrNop(log),
	}
}

func (s *CharacterService) Configured() bool {
	return s.token != ""
}

// ResolveKeyword picks the explicit keyword, then the English name, then the
// Korean name.
func ResolveKeyword(in CharacterInput) string {
	for _, candidate := range []string{in.Keyword, in.NameEN, in.NameKO} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return ""
}

// Generate renders a character for the insect keyword and stores the image.
func (s *CharacterService) Generate(ctx context.Context, in CharacterInput) (*CharacterResult, error) {
	keyword := ResolveKeyword(in)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", ErrInvalidInput)
	}
	style, ok := findStyle(in.Style)
	if !ok {
		return nil, fmt.Errorf("%w: unknown style %q", ErrInvalidInput, in.Style)
	}
	if !s.Configured() {
		return nil, ErrGeneratorNotConfigured
	}

	prompt := CharacterPrompt(keyword, style, in.Traits)
	req := ai.DiffusionRequest{
		Prompt:         prompt,
		NegativePrompt: characterNegativePrompt,
		InferenceSteps: s.sampling.InferenceSteps,
		GuidanceScale:  s.sampling.GuidanceScale,
		Width:          s.sampling.Width,
		Height:         s.sampling.Height,
	}

	start := time.Now()
	var (
		image       []byte
		contentType string
	)
	call := func(ctx context.Context) error {
		data, ct, err := s.generator.TextToImage(ctx, s.token, req)
		if err != nil {
			return err
		}
		image, contentType = data, ct
		return nil
	}
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "diffusion.text_to_image", call, ai.ClassifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, upstreamError("character generation", err)
	}
	elapsed := time.Since(start)

	saved, err := s.store.SaveGenerated("character_", extensionFor(contentType), image)
	if err != nil {
		return nil, fmt.Errorf("save character image failed: %w", err)
	}
	s.log.Info("character generated",
		zap.String("keyword", keyword),
		zap.String("file", saved.Name),
		zap.Duration("elapsed", elapsed),
	)

	return &CharacterResult{
		Success:              true,
		ImageURL:             s.urlPrefix + "/" + saved.Name,
		ImagePath:            saved.Path,
		ImageFilename:        saved.Name,
		Keyword:              keyword,
		Prompt:               prompt,
		StyleApplied:         style.Name,
		CharacterDescription: describeCharacter(keyword, style, in.Traits),
		FeaturesUsed:         in.Traits,
		SourceImage:          in.SourceFile,
		ModelVersion:         s.generator.Model(),
		GenerationTime:       fmt.Sprintf("%.1f초", elapsed.Seconds()),
		Status:               "success",
	}, nil
}

func (s *CharacterService) ModelInfo() map[string]interface{} {
	names := make([]string, 0, len(characterStyles))
	for _, st := range characterStyles {
		names = append(names, st.Name)
	}
	return map[string]interface{}{
		"model_name":       "CharacterGenerator",
		"model_version":    s.generator.Model(),
		"available_styles": names,
		"output_size":      fmt.Sprintf("%dx%d", s.sampling.Width, s.sampling.Height),
		"model_loaded":     s.Configured(),
	}
}

func describeCharacter(keyword string, style CharacterStyle, traits CharacterTraits) string {
	desc := fmt.Sprintf("%s로 표현된 사랑스러운 %s 캐릭터", style.Name, keyword)
	if a := strings.TrimSpace(traits.Appearance); a != "" {
		desc += ", " + a
	}
	return desc
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
