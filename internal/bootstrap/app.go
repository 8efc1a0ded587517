package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"line-relay/internal/ai"
	appsvc "line-relay/internal/app"
	"line-relay/internal/cache"
	"line-relay/internal/config"
	"line-relay/internal/line"
	"line-relay/internal/model"
	"line-relay/internal/observability"
	"line-relay/internal/platform/database"
	rabbitmqClient "line-relay/internal/platform/rabbitmq"
	redisClient "line-relay/internal/platform/redis"
	"line-relay/internal/repository"
	"line-relay/internal/worker"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	Store      *appsvc.HistoryStore
	Generator  *appsvc.ReplyGenerator
	Dispatcher *appsvc.Dispatcher
	Greetings  *appsvc.GreetingService
	TurnEvents *repository.TurnEventRepository

	// EventWorker is nil when turn events are written inline.
	EventWorker *worker.TurnEventWorker

	publisher *rabbitmqClient.TurnEventPublisher

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return Build(ctx, cfg, SetupLogging(cfg.App.LogLevel))
}

// Build connects every configured dependency and wires the services. Redis
// and RabbitMQ are optional; the database is not.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(cfg.App.MetricsNamespace),
		StartedAt: time.Now(),
	}

	db, err := database.New(ctx, cfg.Store.URL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	if err := db.AutoMigrate(&model.ChatTurn{}, &model.TurnEvent{}); err != nil {
		a.Close()
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
		a.Close()
		return nil, err
	}
	if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
		a.Close()
		return nil, err
	}

	turnRepo := repository.NewTurnRepository(db)
	a.TurnEvents = repository.NewTurnEventRepository(db)

	var historyCache appsvc.HistoryCache
	if a.Redis != nil {
		historyCache = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
			cfg.Redis.HistoryWindow,
		)
	} else {
		logger.Info("redis not configured, history cache disabled")
	}
	a.Store = appsvc.NewHistoryStore(turnRepo, historyCache, logger)

	llm := ai.NewOpenAICompatibleClient(ai.ClientConfig{
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		APIStyle: cfg.LLM.APIStyle,
		Timeout:  cfg.LLMTimeout(),
	})
	a.Generator = appsvc.NewReplyGenerator(llm, cfg.LLM.Model, a.Metrics)

	var publisher appsvc.TurnEventPublisher = turnEventRecorder{repo: a.TurnEvents}
	if a.MQConn != nil {
		a.publisher = rabbitmqClient.NewTurnEventPublisher(a.MQConn, cfg.RabbitMQ.TurnEventQueue)
		a.EventWorker = worker.NewTurnEventWorker(a.MQConn, a.TurnEvents, cfg.RabbitMQ.TurnEventQueue, logger)
		if err := a.EventWorker.Start(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("start turn event worker failed: %w", err)
		}
		publisher = a.publisher
	} else {
		logger.Info("rabbitmq not configured, turn events written inline")
	}

	lineClient := line.NewClient(cfg.Line)
	a.Dispatcher = appsvc.NewDispatcher(a.Store, a.Generator, lineClient, publisher, a.Metrics, logger)
	a.Greetings = appsvc.NewGreetingService(cfg, a.Generator, lineClient, a.Metrics, logger)

	if err := cfg.ValidateReply(); err != nil {
		logger.Warn("webhook replies will fall back or fail", "error", err)
	}
	return a, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}

// SetupLogging installs a JSON slog handler at the given level as the
// process default and returns it.
func SetupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// turnEventRecorder stores turn events synchronously when no broker is
// configured.
type turnEventRecorder struct {
	repo *repository.TurnEventRepository
}

func (r turnEventRecorder) Publish(ctx context.Context, event model.TurnEvent) error {
	return r.repo.Create(ctx, &event)
}
