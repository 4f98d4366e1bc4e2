package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/crewdesk/crewdesk/libs/config"
	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/libs/httpx"
	"github.com/crewdesk/crewdesk/libs/kafkax"
	otelx "github.com/crewdesk/crewdesk/libs/otel"
	"github.com/crewdesk/crewdesk/libs/runtime"
	"github.com/crewdesk/crewdesk/services/gamification-service/internal/consumer"
	"github.com/crewdesk/crewdesk/services/gamification-service/internal/handlers"
	"github.com/crewdesk/crewdesk/services/gamification-service/internal/inbox"
	"github.com/crewdesk/crewdesk/services/gamification-service/internal/leaderboard"
	"github.com/crewdesk/crewdesk/services/gamification-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	pointsCompleted = 100
	pointsAssigned  = 10
	pointsPerStar   = 10
)

func main() {
	service := config.String("SERVICE_NAME", "gamification-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer rdb.Close()
		logger.Info("leaderboard enabled (redis)", "redis_addr", addr)
	} else {
		logger.Warn("leaderboard disabled (no redis configured)")
	}

	inboxRepo := inbox.NewRepository(pool)
	pointsRepo := storage.NewPointsRepository(pool)
	board := leaderboard.New(rdb)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "gamification-service")

	award := func(ctx context.Context, workerID, department, taskID, reason string, points int) error {
		if err := pointsRepo.Award(ctx, storage.LedgerEntry{
			WorkerID:   workerID,
			Department: department,
			TaskID:     taskID,
			Reason:     reason,
			Points:     points,
		}); err != nil {
			return err
		}
		if err := board.Add(ctx, workerID, department, points); err != nil {
			logger.Warn("leaderboard update failed", "err", err, "worker_id", workerID)
		}
		return nil
	}

	assignedCfg := consumer.Config{Brokers: brokers, GroupID: groupID, Topic: "taskpool.task.assigned.v1"}
	assignedConsumer := consumer.New(logger, inboxRepo, assignedCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			TaskID     string   `json:"task_id"`
			Department string   `json:"department"`
			WorkerIDs  []string `json:"worker_ids"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid assigned payload", "err", err)
			return nil
		}
		if payload.TaskID == "" {
			return nil
		}
		for _, workerID := range payload.WorkerIDs {
			if err := award(ctx, workerID, payload.Department, payload.TaskID, "task_assigned", pointsAssigned); err != nil {
				logger.Error("failed to award assignment points", "err", err)
				return err
			}
		}
		return nil
	})
	go assignedConsumer.Run(ctx)

	completedCfg := consumer.Config{Brokers: brokers, GroupID: groupID, Topic: "taskpool.task.completed.v1"}
	completedConsumer := consumer.New(logger, inboxRepo, completedCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			TaskID     string   `json:"task_id"`
			Department string   `json:"department"`
			WorkerIDs  []string `json:"worker_ids"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid completed payload", "err", err)
			return nil
		}
		if payload.TaskID == "" {
			return nil
		}
		for _, workerID := range payload.WorkerIDs {
			if err := award(ctx, workerID, payload.Department, payload.TaskID, "task_completed", pointsCompleted); err != nil {
				logger.Error("failed to award completion points", "err", err)
				return err
			}

			count, err := pointsRepo.CompletedCount(ctx, workerID)
			if err != nil {
				logger.Error("failed to count completions", "err", err)
				continue
			}
			switch {
			case count == 1:
				if fresh, err := pointsRepo.AwardBadge(ctx, workerID, "first_task"); err == nil && fresh {
					logger.Info("badge awarded", "worker_id", workerID, "badge", "first_task")
				}
			case count == 10:
				if fresh, err := pointsRepo.AwardBadge(ctx, workerID, "ten_tasks"); err == nil && fresh {
					logger.Info("badge awarded", "worker_id", workerID, "badge", "ten_tasks")
				}
			}
		}
		logger.Info("completion points recorded", "task_id", payload.TaskID, "workers", len(payload.WorkerIDs))
		return nil
	})
	go completedConsumer.Run(ctx)

	reviewedCfg := consumer.Config{Brokers: brokers, GroupID: groupID, Topic: "taskpool.task.reviewed.v1"}
	reviewedConsumer := consumer.New(logger, inboxRepo, reviewedCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			TaskID   string `json:"task_id"`
			WorkerID string `json:"worker_id"`
			Rating   int    `json:"rating"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid reviewed payload", "err", err)
			return nil
		}
		if payload.TaskID == "" || payload.WorkerID == "" || payload.Rating < 1 || payload.Rating > 5 {
			logger.Error("missing review fields")
			return nil
		}

		if err := pointsRepo.RecordRating(ctx, payload.WorkerID, payload.TaskID, payload.Rating); err != nil {
			logger.Error("failed to record rating", "err", err)
			return err
		}
		if err := award(ctx, payload.WorkerID, "", payload.TaskID, "review", payload.Rating*pointsPerStar); err != nil {
			logger.Error("failed to award review points", "err", err)
			return err
		}
		if payload.Rating == 5 {
			if fresh, err := pointsRepo.AwardBadge(ctx, payload.WorkerID, "five_star"); err == nil && fresh {
				logger.Info("badge awarded", "worker_id", payload.WorkerID, "badge", "five_star")
			}
		}
		return nil
	})
	go reviewedConsumer.Run(ctx)

	gamificationHandler := handlers.NewGamificationHandler(pointsRepo, board)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMux(checks...)
	mux.HandleFunc("/api/v1/gamification/leaderboard", gamificationHandler.Leaderboard)
	mux.HandleFunc("/api/v1/gamification/profile", gamificationHandler.Profile)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "gamification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
