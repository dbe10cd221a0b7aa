package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gopherai-insect/internal/ai"
	"gopherai-insect/internal/app"
	"gopherai-insect/internal/cache"
	"gopherai-insect/internal/config"
	"gopherai-insect/internal/pkg/logger"
	"gopherai-insect/internal/pkg/metrics"
	"gopherai-insect/internal/pkg/resilience"
	rabbitmqClient "gopherai-insect/internal/platform/rabbitmq"
	redisClient "gopherai-insect/internal/platform/redis"
	"gopherai-insect/internal/repository"
	"gopherai-insect/internal/storage/localfs"
	"gopherai-insect/internal/vision"
	"gopherai-insect/internal/worker"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	Redis        *redis.Client
	MQConn       *amqp.Connection
	RecordWorker *worker.RecordHistoryWorker
	Cron         *cron.Cron
	Vision       *vision.Classifier

	Uploads   *localfs.Storage
	Generated *localfs.Storage
	Audio     *localfs.Storage
	History   *repository.HistoryRepository

	Keys       *app.APIKeyStore
	Classifier *app.ClassifierService
	Characters *app.CharacterService
	Voices     *app.VoiceService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    log,
		Metrics:   metrics.New(cfg.App.Name),
		StartedAt: time.Now(),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	var err error

	if a.Uploads, err = localfs.New(cfg.Upload.Dir); err != nil {
		return fmt.Errorf("upload storage: %w", err)
	}
	if a.Generated, err = localfs.New(cfg.Upload.GeneratedDir); err != nil {
		return fmt.Errorf("generated storage: %w", err)
	}
	if a.Audio, err = localfs.New(cfg.Audio.Dir); err != nil {
		return fmt.Errorf("audio storage: %w", err)
	}
	if a.History, err = repository.NewHistoryRepository(cfg.RabbitMQ.HistoryFile); err != nil {
		return err
	}

	executor := resilience.NewExecutor(resilience.FromAppConfig(cfg.Resilience), a.Logger.Named("resilience"))
	executor.SetObserver(a.Metrics.ObserveExternalCall)

	opts := app.ClassifierOptions{
		MaxDimension: cfg.Gemini.MaxDimension,
		Logger:       a.Logger.Named("classifier"),
	}

	if cfg.Redis.Enabled {
		if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
			return err
		}
		ttl := time.Duration(cfg.Redis.ClassificationTTLSeconds) * time.Second
		opts.Cache = cache.NewClassificationCache(a.Redis, ttl)
	}

	if cfg.RabbitMQ.Enabled {
		if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
			return err
		}
		opts.Publisher = rabbitmqClient.NewRecordPublisher(a.MQConn, cfg.RabbitMQ.RecordQueue)
		a.RecordWorker = worker.NewRecordHistoryWorker(a.MQConn, a.History, cfg.RabbitMQ.RecordQueue, a.Logger.Named("worker"))
		if err := a.RecordWorker.Start(ctx); err != nil {
			return fmt.Errorf("start record worker failed: %w", err)
		}
	}

	if cfg.Vision.Enabled {
		a.Vision = vision.NewClassifier(cfg.Vision.ModelPath, cfg.Vision.LabelsPath, cfg.Vision.ONNXSharedLibPath, cfg.Vision.TopK, cfg.Vision.InsectsOnly)
		opts.Local = a.Vision
	}

	a.Keys = app.NewAPIKeyStore(cfg.Gemini.APIKey)
	gemini := ai.NewGeminiClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, seconds(cfg.Gemini.TimeoutSeconds))
	a.Classifier = app.NewClassifierService(a.Keys, gemini, executor, opts)

	diffusion := ai.NewDiffusionClient(cfg.Diffusion.BaseURL, cfg.Diffusion.Model, seconds(cfg.Diffusion.TimeoutSeconds))
	a.Characters = app.NewCharacterService(diffusion, cfg.Diffusion.Token, executor, a.Generated, "/generated", app.SamplingConfig{
		InferenceSteps: cfg.Diffusion.InferenceSteps,
		GuidanceScale:  cfg.Diffusion.GuidanceScale,
		Width:          cfg.Diffusion.Width,
		Height:         cfg.Diffusion.Height,
	}, a.Logger.Named("character"))

	tts := ai.NewTTSClient(cfg.TTS.BaseURL, seconds(cfg.TTS.TimeoutSeconds))
	a.Voices = app.NewVoiceService(tts, cfg.TTS.APIKey, executor, a.Audio, "/audio", app.VoiceDefaults{
		LanguageCode: cfg.TTS.LanguageCode,
		VoiceName:    cfg.TTS.DefaultVoice,
		SpeakingRate: cfg.TTS.SpeakingRate,
		Pitch:        cfg.TTS.Pitch,
	}, a.Logger.Named("voice"))

	return a.scheduleAudioCleanup()
}

// AudioMaxAge is the configured retention for generated speech files.
func (a *App) AudioMaxAge() time.Duration {
	return time.Duration(a.Config.Audio.MaxAgeHours) * time.Hour
}

func (a *App) scheduleAudioCleanup() error {
	schedule := a.Config.Audio.CleanupSchedule
	if schedule == "" {
		return nil
	}
	a.Cron = cron.New(cron.WithLogger(cronLogger{a.Logger.Named("cron").Sugar()}))
	_, err := a.Cron.AddFunc(schedule, func() {
		removed, err := a.Voices.Cleanup(a.AudioMaxAge())
		a.Metrics.RecordAudioCleanup(len(removed))
		if err != nil {
			a.Logger.Warn("scheduled audio cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule audio cleanup %q failed: %w", schedule, err)
	}
	a.Cron.Start()
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	if a.RecordWorker != nil {
		a.RecordWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Vision != nil {
		if err := a.Vision.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close vision session: %w", err))
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
