package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookclub/internal/ratelimit"
	"bookclub/internal/util"
	"bookclub/pkg/ai"
	"bookclub/pkg/challenge"
	"bookclub/pkg/notify"
	"bookclub/pkg/queue"
	"bookclub/pkg/storage"
	"bookclub/services/club/internal/app"
	"bookclub/services/club/internal/config"
	"bookclub/services/club/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	var events notify.Publisher = notify.NoopPublisher{}
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		publisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init amqp publisher: %v", err)
		}
		defer publisher.Close()
		events = publisher
	} else {
		slog.Warn("amqp url not configured, notification events are dropped")
	}

	jobQueue, err := queue.NewRedisNotificationQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.NotificationStream,
	})
	if err != nil {
		log.Fatalf("failed to init notification queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    time.Duration(cfg.SessionTTLHours) * time.Hour,
		ChallengeYear: cfg.ChallengeYear,
		Rotation: challenge.RotationConfig{
			StartYear:  cfg.RotationStartYear,
			StartMonth: cfg.RotationStartMonth,
			Order:      cfg.RotationOrder,
		},
		PresignExpiry: time.Duration(cfg.PresignExpiryMinutes) * time.Minute,
		Objects:       objects,
		Jobs:          jobQueue,
		Events:        events,
		Generator:     newGenerator(cfg),
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workers := cfg.NotificationWorkers
	if workers <= 0 {
		workers = 2
	}
	jobQueue.Start(ctx, workers, func(ctx context.Context, job queue.NotificationJob) error {
		return events.Publish(ctx, notify.Event{
			Kind:        job.Kind,
			TargetEmail: job.TargetEmail,
			Subject:     subjectFor(job.Kind),
			Body:        fmt.Sprintf("comment %s", job.CommentID),
			CreatedAt:   time.Now().UTC(),
		})
	})

	httpServer := server.New(server.Config{
		App:              appCore,
		CommentLimiter:   newLimiter(cfg, "comments", cfg.CommentRateLimit),
		RecommendLimiter: newLimiter(cfg, "recommend", cfg.RecommendRateLimit),
		TrustedProxies:   trustedProxies,
		MaxCoverBytes:    cfg.MaxCoverBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("club server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func newGenerator(cfg config.FileConfig) ai.TextGenerator {
	switch strings.ToLower(strings.TrimSpace(cfg.AIProvider)) {
	case "ollama":
		return ai.NewOllamaGenerator(cfg.AIBaseURL, cfg.AIModel)
	case "openai", "openai-compatible":
		return ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	default:
		slog.Warn("ai provider not configured, recommendations disabled")
		return nil
	}
}

func newLimiter(cfg config.FileConfig, name string, limit int) server.Limiter {
	if limit <= 0 {
		return nil
	}
	window := time.Duration(cfg.RateWindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "bookclub:ratelimit:"+name, limit, window)
	if err != nil {
		log.Fatalf("failed to init %s rate limiter: %v", name, err)
	}
	return limiter
}

func subjectFor(kind string) string {
	switch kind {
	case queue.KindMention:
		return "You were mentioned in a comment"
	case queue.KindReply:
		return "Someone replied to your comment"
	case queue.KindMonthlyPick:
		return "Book of the month updated"
	default:
		return "Book club notification"
	}
}
