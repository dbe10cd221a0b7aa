package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gopherai-insect/internal/ai"
	"gopherai-insect/internal/model"
	"gopherai-insect/internal/pkg/fieldextract"
	"gopherai-insect/internal/pkg/imageupload"
	"gopherai-insect/internal/pkg/logger"
	"gopherai-insect/internal/pkg/resilience"
)

const (
	classifierModelName = "KidsInsectClassifier"
	unknownInsect       = "알 수 없는 곤충"
	fixedConfidence     = 0.95
)

var supportedInsects = []string{
	"나비 (Butterfly)",
	"벌 (Bee)",
	"개미 (Ant)",
	"무당벌레 (Ladybug)",
	"잠자리 (Dragonfly)",
	"메뚜기 (Grasshopper)",
	"딱정벌레 (Beetle)",
	"나방 (Moth)",
	"파리 (Fly)",
	"모기 (Mosquito)",
}

type VisionModel interface {
	GenerateContent(ctx context.Context, apiKey, prompt string, img ai.InlineImage) (string, error)
	Model() string
}

type ClassificationCache interface {
	Get(ctx context.Context, digest, modelName string) (*model.CachedClassification, bool, error)
	Set(ctx context.Context, digest, modelName string, v model.CachedClassification) error
}

type RecordPublisher interface {
	Publish(ctx context.Context, rec model.ClassificationRecord) error
}

type LocalClassifier interface {
	Classify(imageData []byte) ([]model.LabelScore, error)
}

type ClassifierService struct {
	keys         *APIKeyStore
	vision       VisionModel
	executor     *resilience.Executor
	cache        ClassificationCache
	publisher    RecordPublisher
	local        LocalClassifier
	maxDimension int
	log          *zap.Logger
}

// ClassifierOptions carries the optional collaborators. Nil members are skipped.
type ClassifierOptions struct {
	Cache        ClassificationCache
	Publisher    RecordPublisher
	Local        LocalClassifier
	MaxDimension int
	Logger       *zap.Logger
}

type ClassifyInput struct {
	Endpoint     string
	ImageName    string
	MimeType     string
	Data         []byte
	IncludeLocal bool
}

type ClassificationResult struct {
	PredictedClass   string              `json:"predicted_class"`
	PredictedClassEN string              `json:"predicted_class_en"`
	Confidence       float64             `json:"confidence"`
	Classification   string              `json:"classification"`
	ParsedData       map[string]string   `json:"parsed_data"`
	MissingFields    []string            `json:"missing_fields,omitempty"`
	ModelVersion     string              `json:"model_version"`
	Status           string              `json:"status"`
	Cached           bool                `json:"cached"`
	LocalPredictions []model.LabelScore  `json:"local_predictions,omitempty"`
	Fields           fieldextract.Fields `json:"-"`
}

func NewClassifierService(keys *APIKeyStore, vision VisionModel, executor *resilience.Executor, opts ClassifierOptions) *ClassifierService {
	return &ClassifierService{
		keys:         keys,
		vision:       vision,
		executor:     executor,
		cache:        opts.Cache,
		publisher:    opts.Publisher,
		local:        opts.Local,
		maxDimension: opts.MaxDimension,
		log:          logger.OrNop(opts.Logger),
	}
}

func (s *ClassifierService) Keys() *APIKeyStore {
	return s.keys
}

// Classify asks the vision model about the image and parses its answer.
func (s *ClassifierService) Classify(ctx context.Context, input ClassifyInput) (*ClassificationResult, error) {
	apiKey := s.keys.Get()
	if apiKey == "" {
		return nil, ErrAPIKeyNotConfigured
	}
	if len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}

	sum := sha256.Sum256(input.Data)
	digest := hex.EncodeToString(sum[:])
	modelName := s.vision.Model()

	rawText, cached := s.lookupCache(ctx, digest, modelName)
	if !cached {
		text, err := s.generate(ctx, apiKey, input)
		if err != nil {
			return nil, err
		}
		rawText = text
		s.storeCache(ctx, digest, modelName, rawText)
	}

	fields := fieldextract.Extract(rawText)
	predicted := fields.Value(fieldextract.KeyName)
	if predicted == "" {
		predicted = unknownInsect
	}
	result := &ClassificationResult{
		PredictedClass:   predicted,
		PredictedClassEN: fields.Value(fieldextract.KeyNameEN),
		Confidence:       fixedConfidence,
		Classification:   rawText,
		ParsedData:       fields.Map(),
		MissingFields:    fields.Missing(),
		ModelVersion:     modelVersion(modelName),
		Status:           "success",
		Cached:           cached,
		Fields:           fields,
	}

	if input.IncludeLocal && s.local != nil {
		predictions, err := s.local.Classify(input.Data)
		if err != nil {
			s.log.Warn("local pre-classifier failed", zap.Error(err))
		} else {
			result.LocalPredictions = predictions
		}
	}

	s.publishRecord(ctx, input, digest, result)
	return result, nil
}

func (s *ClassifierService) generate(ctx context.Context, apiKey string, input ClassifyInput) (string, error) {
	mimeType := imageupload.NormalizeMimeType(input.MimeType)
	if mimeType == "" {
		mimeType = imageupload.MimeTypeForFilename(input.ImageName)
	}
	data, mimeType, err := imageupload.Downscale(input.Data, mimeType, s.maxDimension)
	if err != nil {
		s.log.Warn("downscale failed, sending original image", zap.Error(err))
		data, mimeType = input.Data, imageupload.MimeTypeForFilename(input.ImageName)
	}

	img := ai.InlineImage{MimeType: mimeType, Data: data}
	prompt := ClassificationPrompt()

	var text string
	call := func(ctx context.Context) error {
		out, err := s.vision.GenerateContent(ctx, apiKey, prompt, img)
		if err != nil {
			return err
		}
		text = out
		return nil
	}
	if s.executor != nil {
		err = s.executor.Execute(ctx, "gemini.generate_content", call, ai.ClassifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", upstreamError("gemini classification", err)
	}
	return text, nil
}

func (s *ClassifierService) lookupCache(ctx context.Context, digest, modelName string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	entry, ok, err := s.cache.Get(ctx, digest, modelName)
	if err != nil {
		s.log.Warn("classification cache get failed", zap.Error(err))
		return "", false
	}
	if !ok || strings.TrimSpace(entry.RawText) == "" {
		return "", false
	}
	return entry.RawText, true
}

func (s *ClassifierService) storeCache(ctx context.Context, digest, modelName, rawText string) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, digest, modelName, model.CachedClassification{
		RawText:      rawText,
		ModelVersion: modelVersion(modelName),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		s.log.Warn("classification cache set failed", zap.Error(err))
	}
}

func (s *ClassifierService) publishRecord(ctx context.Context, input ClassifyInput, digest string, result *ClassificationResult) {
	if s.publisher == nil {
		return
	}
	rec := model.ClassificationRecord{
		ID:             uuid.NewString(),
		Endpoint:       input.Endpoint,
		ImageName:      input.ImageName,
		ImageSHA256:    digest,
		PredictedClass: result.PredictedClass,
		NameEN:         result.PredictedClassEN,
		Fields:         result.ParsedData,
		MissingFields:  result.MissingFields,
		ModelVersion:   result.ModelVersion,
		Cached:         result.Cached,
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, rec); err != nil {
		s.log.Warn("publish classification record failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// ModelInfo describes the classifier for status endpoints.
func (s *ClassifierService) ModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"model_name":      classifierModelName,
		"api_key_set":     s.keys.IsSet(),
		"classes":         supportedInsects,
		"model_version":   modelVersion(s.vision.Model()),
		"cache_enabled":   s.cache != nil,
		"local_enabled":   s.local != nil,
		"response_fields": fieldextract.Labels(),
	}
}

func modelVersion(modelName string) string {
	if modelName == "" {
		return "unknown"
	}
	parts := strings.SplitN(modelName, "-", 2)
	if len(parts) == 2 && parts[0] != "" {
		return fmt.Sprintf("%s%s-%s", strings.ToUpper(parts[0][:1]), parts[0][1:], parts[1])
	}
	return modelName
}
