package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/app"
	"gopherai-insect/internal/transport/http/response"
)

type CharacterHandler struct {
	characters *app.CharacterService
	classifier *app.ClassifierService
	uploads    *Uploads
}

type GenerateCharacterRequest struct {
	Keyword          string            `json:"keyword"`
	InsectName       string            `json:"insect_name"`
	InsectKoreanName string            `json:"insect_korean_name"`
	InsectFeatures   map[string]string `json:"insect_features"`
	Style            string            `json:"style"`
}

func NewCharacterHandler(characters *app.CharacterService, classifier *app.ClassifierService, uploads *Uploads) *CharacterHandler {
	return &CharacterHandler{characters: characters, classifier: classifier, uploads: uploads}
}

// Generate accepts either a JSON body naming the insect or a multipart form
// with an optional keyword and photo. A photo without a keyword is classified
// first to find the insect's name.
func (h *CharacterHandler) Generate(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.generateFromForm(c)
		return
	}

	var req GenerateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.characters.Generate(c.Request.Context(), app.CharacterInput{
		Keyword: req.Keyword,
		NameEN:  req.InsectName,
		NameKO:  req.InsectKoreanName,
		Style:   req.Style,
		Traits:  traitsFromFields(req.InsectFeatures),
	})
	if err != nil {
		writeError(c, err, "캐릭터 생성")
		return
	}
	response.OK(c, gin.H{
		"message":   "캐릭터 생성이 완료되었습니다.",
		"character": result,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *CharacterHandler) generateFromForm(c *gin.Context) {
	img, err := h.uploads.receive(c, "character_", false)
	switch {
	case errors.Is(err, errMissingFile):
		img = nil
	case err != nil:
		writeError(c, err, "캐릭터 생성")
		return
	}

	in := app.CharacterInput{
		Keyword: c.PostForm("keyword"),
		Style:   c.PostForm("style"),
	}

	var classification *app.ClassificationResult
	if img != nil {
		in.SourceFile = img.Saved.Name
		if app.ResolveKeyword(in) == "" {
			classification, err = h.classifier.Classify(c.Request.Context(), app.ClassifyInput{
				Endpoint:  c.FullPath(),
				ImageName: img.Saved.Name,
				MimeType:  img.ContentType,
				Data:      img.Data,
			})
			if err != nil {
				writeError(c, err, "캐릭터 생성")
				return
			}
			in.NameEN = classification.PredictedClassEN
			in.NameKO = classification.PredictedClass
			in.Traits = traitsFromFields(classification.ParsedData)
		}
	}

	result, err := h.characters.Generate(c.Request.Context(), in)
	if err != nil {
		writeError(c, err, "캐릭터 생성")
		return
	}

	body := gin.H{
		"message":   "캐릭터 생성이 완료되었습니다.",
		"character": result,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if img != nil {
		body["original_image"] = img.Saved.Path
	}
	if classification != nil {
		body["classification"] = classification
	}
	response.OK(c, body)
}

// Styles lists the selectable character styles.
func (h *CharacterHandler) Styles(c *gin.Context) {
	response.OK(c, gin.H{"styles": app.CharacterStyles()})
}
