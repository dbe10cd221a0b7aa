package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/bootstrap"
	rabbitmqClient "gopherai-insect/internal/platform/rabbitmq"
	redisClient "gopherai-insect/internal/platform/redis"
	"gopherai-insect/internal/transport/http/handler"
	"gopherai-insect/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(app.Logger.Named("http")),
		app.Metrics.GinMiddleware(),
		cors.New(corsConfig(app.Config.HTTP.AllowedOrigins)),
	)

	uploads := handler.NewUploads(app.Uploads, app.Config.Upload.MaxBytes)
	statusHandler := handler.NewStatusHandler(
		app.Config.App.Name,
		app.Classifier,
		app.Characters,
		app.Voices,
		dependencyChecks(app),
		app.StartedAt,
	)
	uploadHandler := handler.NewUploadHandler(uploads)
	classifyHandler := handler.NewClassifyHandler(app.Classifier, app.Characters, uploads, app.Metrics)
	characterHandler := handler.NewCharacterHandler(app.Characters, app.Classifier, uploads)
	voiceHandler := handler.NewVoiceHandler(app.Voices, app.AudioMaxAge(), app.Metrics)
	apiKeyHandler := handler.NewAPIKeyHandler(app.Keys)
	historyHandler := handler.NewHistoryHandler(app.History)

	router.GET("/", statusHandler.Root)
	router.GET("/health", statusHandler.Health)
	router.GET("/model-status", statusHandler.ModelStatus)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	router.GET("/character-styles", characterHandler.Styles)
	router.GET("/voices", voiceHandler.ListVoices)
	router.GET("/history", historyHandler.List)
	router.GET("/audio/:filename", handler.ServeStored(app.Audio, "audio/mpeg"))
	router.GET("/generated/:filename", handler.ServeStored(app.Generated, ""))

	work := router.Group("/")
	if rps := app.Config.HTTP.RateLimitRPS; rps > 0 {
		work.Use(middleware.NewRateLimiter(rps, app.Config.HTTP.RateLimitBurst).Middleware())
	}
	work.POST("/upload-image", uploadHandler.Upload)
	work.POST("/classify-insect", classifyHandler.Classify)
	work.POST("/classify-insect-detailed", classifyHandler.ClassifyDetailed)
	work.POST("/classify-insect-simple", classifyHandler.ClassifySimple)
	work.POST("/generate-character", characterHandler.Generate)
	work.POST("/process-full", classifyHandler.ProcessFull)
	work.POST("/generate-voice", voiceHandler.Generate)

	admin := router.Group("/")
	admin.Use(middleware.AdminJWT(app.Config.Auth.AdminJWTSecret))
	admin.POST("/set-api-key", apiKeyHandler.Set)
	admin.DELETE("/api-key", apiKeyHandler.Clear)
	admin.POST("/cleanup-audio", voiceHandler.Cleanup)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func dependencyChecks(app *bootstrap.App) map[string]handler.DependencyCheck {
	checks := map[string]handler.DependencyCheck{}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx, app.Redis)
		}
	}
	if app.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if !rabbitmqClient.Healthy(app.MQConn) {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}
