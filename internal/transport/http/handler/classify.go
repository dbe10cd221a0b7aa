package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/app"
	"gopherai-insect/internal/pkg/fieldextract"
	"gopherai-insect/internal/transport/http/response"
)

// ClassificationRecorder counts completed classifications.
type ClassificationRecorder interface {
	RecordClassification(endpoint string, cached bool)
}

type ClassifyHandler struct {
	classifier *app.ClassifierService
	characters *app.CharacterService
	uploads    *Uploads
	recorder   ClassificationRecorder
}

func NewClassifyHandler(
	classifier *app.ClassifierService,
	characters *app.CharacterService,
	uploads *Uploads,
	recorder ClassificationRecorder,
) *ClassifyHandler {
	return &ClassifyHandler{
		classifier: classifier,
		characters: characters,
		uploads:    uploads,
		recorder:   recorder,
	}
}

type detailedResponse struct {
	*app.ClassificationResult
	Message       string `json:"message"`
	ImageFilename string `json:"image_filename"`
	ImagePath     string `json:"image_path"`
	Timestamp     string `json:"timestamp"`
}

func (h *ClassifyHandler) classify(c *gin.Context, img *uploadedImage, includeLocal bool) (*app.ClassificationResult, error) {
	endpoint := c.FullPath()
	result, err := h.classifier.Classify(c.Request.Context(), app.ClassifyInput{
		Endpoint:     endpoint,
		ImageName:    img.Saved.Name,
		MimeType:     img.ContentType,
		Data:         img.Data,
		IncludeLocal: includeLocal,
	})
	if err != nil {
		return nil, err
	}
	if h.recorder != nil {
		h.recorder.RecordClassification(endpoint, result.Cached)
	}
	return result, nil
}

// Classify handles POST /classify-insect with extension-only validation.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	img, err := h.uploads.receive(c, "classify_", false)
	if err != nil {
		writeError(c, err, "곤충 분류")
		return
	}
	result, err := h.classify(c, img, false)
	if err != nil {
		writeError(c, err, "곤충 분류")
		return
	}

	response.OK(c, gin.H{
		"message":         "곤충 분류가 완료되었습니다.",
		"classification":  result,
		"processed_image": img.Saved.Path,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// ClassifyDetailed validates the content type and image bytes, then returns
// the full result including local predictions when enabled.
func (h *ClassifyHandler) ClassifyDetailed(c *gin.Context) {
	img, err := h.uploads.receive(c, "detailed_", true)
	if err != nil {
		writeError(c, err, "상세 곤충 분류")
		return
	}
	result, err := h.classify(c, img, true)
	if err != nil {
		writeError(c, err, "상세 곤충 분류")
		return
	}

	response.OK(c, detailedResponse{
		ClassificationResult: result,
		Message:              "상세 곤충 분류가 완료되었습니다.",
		ImageFilename:        img.Saved.Name,
		ImagePath:            img.Saved.Path,
		Timestamp:            time.Now().Format(time.RFC3339),
	})
}

func (h *ClassifyHandler) ClassifySimple(c *gin.Context) {
	img, err := h.uploads.receive(c, "simple_", true)
	if err != nil {
		writeError(c, err, "곤충 분류")
		return
	}
	result, err := h.classify(c, img, false)
	if err != nil {
		writeError(c, err, "곤충 분류")
		return
	}

	response.OK(c, gin.H{
		"success":        true,
		"insect_name":    result.PredictedClass,
		"insect_name_en": result.PredictedClassEN,
		"confidence":     result.Confidence,
		"parsed_data":    result.ParsedData,
		"cached":         result.Cached,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// ProcessFull classifies the upload and draws a character for the result.
func (h *ClassifyHandler) ProcessFull(c *gin.Context) {
	img, err := h.uploads.receive(c, "full_", false)
	if err != nil {
		writeError(c, err, "전체 처리")
		return
	}
	result, err := h.classify(c, img, false)
	if err != nil {
		writeError(c, err, "전체 처리")
		return
	}

	character, err := h.characters.Generate(c.Request.Context(), app.CharacterInput{
		NameEN:     result.PredictedClassEN,
		NameKO:     result.PredictedClass,
		Traits:     traitsFromFields(result.ParsedData),
		SourceFile: img.Saved.Name,
	})
	if err != nil {
		writeError(c, err, "전체 처리")
		return
	}

	response.OK(c, gin.H{
		"message":        "전체 처리가 완료되었습니다.",
		"classification": result,
		"character":      character,
		"original_image": img.Saved.Path,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

func traitsFromFields(fields map[string]string) app.CharacterTraits {
	return app.CharacterTraits{
		Type:       fields[fieldextract.KeyType],
		Appearance: fields[fieldextract.KeyAppearance],
		Habitat:    fields[fieldextract.KeyHabitat],
	}
}
