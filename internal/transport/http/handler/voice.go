package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/app"
	"gopherai-insect/internal/transport/http/response"
)

// CleanupRecorder counts files removed by the audio sweep.
type CleanupRecorder interface {
	RecordAudioCleanup(removed int)
}

type VoiceHandler struct {
	voices        *app.VoiceService
	defaultMaxAge time.Duration
	recorder      CleanupRecorder
}

type GenerateVoiceRequest struct {
	Text         string            `json:"text"`
	Insect       map[string]string `json:"insect"`
	VoiceName    string            `json:"voice_name"`
	SpeakingRate *float64          `json:"speaking_rate"`
	Pitch        *float64          `json:"pitch"`
	VolumeGainDB *float64          `json:"volume_gain_db"`
}

type CleanupRequest struct {
	MaxAgeHours *float64 `json:"max_age_hours"`
}

func NewVoiceHandler(voices *app.VoiceService, defaultMaxAge time.Duration, recorder CleanupRecorder) *VoiceHandler {
	return &VoiceHandler{voices: voices, defaultMaxAge: defaultMaxAge, recorder: recorder}
}

func (h *VoiceHandler) Generate(c *gin.Context) {
	var req GenerateVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.voices.Generate(c.Request.Context(), app.VoiceInput{
		Text:         req.Text,
		Insect:       req.Insect,
		VoiceName:    req.VoiceName,
		SpeakingRate: req.SpeakingRate,
		Pitch:        req.Pitch,
		VolumeGainDB: req.VolumeGainDB,
	})
	if err != nil {
		writeError(c, err, "음성 생성")
		return
	}
	response.OK(c, result)
}

func (h *VoiceHandler) ListVoices(c *gin.Context) {
	voices, err := h.voices.Voices(c.Request.Context())
	if err != nil {
		writeError(c, err, "음성 목록 조회")
		return
	}
	response.OK(c, gin.H{
		"voices":      voices,
		"count":       len(voices),
		"recommended": h.voices.RecommendedVoice(c.Request.Context()),
	})
}

// Cleanup runs the audio sweep now. The body is optional.
func (h *VoiceHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}

	maxAge := h.defaultMaxAge
	if req.MaxAgeHours != nil {
		if *req.MaxAgeHours < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "max_age_hours must not be negative")
			return
		}
		maxAge = time.Duration(*req.MaxAgeHours * float64(time.Hour))
	}

	removed, err := h.voices.Cleanup(maxAge)
	if h.recorder != nil {
		h.recorder.RecordAudioCleanup(len(removed))
	}
	if err != nil {
		writeError(c, err, "오디오 정리")
		return
	}
	if removed == nil {
		removed = []string{}
	}
	response.OK(c, gin.H{
		"message":       "오래된 음성 파일 정리가 완료되었습니다.",
		"removed_count": len(removed),
		"removed_files": removed,
		"max_age_hours": maxAge.Hours(),
	})
}
