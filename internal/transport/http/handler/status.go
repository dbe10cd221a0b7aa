package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/app"
	"gopherai-insect/internal/transport/http/response"
)

// DependencyCheck probes one optional backing service.
type DependencyCheck func(ctx context.Context) error

type StatusHandler struct {
	appName      string
	classifier   *app.ClassifierService
	characters   *app.CharacterService
	voices       *app.VoiceService
	dependencies map[string]DependencyCheck
	startedAt    time.Time
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewStatusHandler(
	appName string,
	classifier *app.ClassifierService,
	characters *app.CharacterService,
	voices *app.VoiceService,
	dependencies map[string]DependencyCheck,
	startedAt time.Time,
) *StatusHandler {
	return &StatusHandler{
		appName:      appName,
		classifier:   classifier,
		characters:   characters,
		voices:       voices,
		dependencies: dependencies,
		startedAt:    startedAt,
	}
}

func (h *StatusHandler) Root(c *gin.Context) {
	response.OK(c, gin.H{
		"message":   "곤충 분류 및 캐릭터 변환 API 서버가 정상 작동중입니다!",
		"status":    "running",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Health reports wrapper readiness and pings enabled dependencies. It answers
// 503 only when a dependency check fails.
func (h *StatusHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.dependencies))
	allOK := true
	for name, check := range h.dependencies {
		if err := check(ctx); err != nil {
			deps[name] = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
			continue
		}
		deps[name] = dependencyStatus{OK: true}
	}

	statusCode := http.StatusOK
	server := "healthy"
	if !allOK {
		statusCode = http.StatusServiceUnavailable
		server = "degraded"
	}

	c.JSON(statusCode, gin.H{
		"server": server,
		"app":    h.appName,
		"models": gin.H{
			"insect_classifier":   readiness(h.classifier.Keys().IsSet(), "api_key_missing"),
			"character_generator": readiness(h.characters.Configured(), "token_missing"),
			"voice_generator":     readiness(h.voices.Configured(), "api_key_missing"),
		},
		"dependencies": deps,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
	})
}

func (h *StatusHandler) ModelStatus(c *gin.Context) {
	response.OK(c, gin.H{
		"insect_classifier":   h.classifier.ModelInfo(),
		"character_generator": h.characters.ModelInfo(),
		"voice_generator":     h.voices.ServiceInfo(),
		"timestamp":           time.Now().Format(time.RFC3339),
	})
}

func readiness(ok bool, missing string) string {
	if ok {
		return "loaded"
	}
	return missing
}
