package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/crewdesk/crewdesk/libs/config"
	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/libs/httpx"
	"github.com/crewdesk/crewdesk/libs/kafkax"
	otelx "github.com/crewdesk/crewdesk/libs/otel"
	"github.com/crewdesk/crewdesk/libs/runtime"
	"github.com/crewdesk/crewdesk/services/notification-service/internal/chat"
	"github.com/crewdesk/crewdesk/services/notification-service/internal/consumer"
	"github.com/crewdesk/crewdesk/services/notification-service/internal/email"
	"github.com/crewdesk/crewdesk/services/notification-service/internal/handlers"
	"github.com/crewdesk/crewdesk/services/notification-service/internal/inbox"
	"github.com/crewdesk/crewdesk/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type taskEventPayload struct {
	TaskID      string   `json:"task_id"`
	Title       string   `json:"title"`
	Department  string   `json:"department"`
	WorkerIDs   []string `json:"worker_ids"`
	AssignedBy  string   `json:"assigned_by"`
	CompletedBy string   `json:"completed_by"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
}

type reviewEventPayload struct {
	TaskID   string `json:"task_id"`
	WorkerID string `json:"worker_id"`
	Rating   int    `json:"rating"`
}

type userCreatedPayload struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Department  string `json:"department"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@crewdesk.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	chatProvider := strings.ToLower(config.String("CHAT_PROVIDER", "noop"))
	var chatSender chat.Sender
	switch chatProvider {
	case "webhook":
		chatSender = chat.NewWebhookSender(
			config.String("CHAT_WEBHOOK_URL", ""),
			config.String("CHAT_WEBHOOK_TOKEN", ""),
		)
	default:
		chatSender = chat.NewNoopSender()
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	startConsumer := func(topic string, handler consumer.Handler) {
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}

	startConsumer("taskpool.task.assigned.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload taskEventPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid task assigned payload", "err", err)
			return nil
		}
		if payload.TaskID == "" || len(payload.WorkerIDs) == 0 {
			return nil
		}
		body := fmt.Sprintf("You are booked for %q from %s to %s.", payload.Title, payload.StartDate, payload.EndDate)
		for _, workerID := range payload.WorkerIDs {
			if err := notificationsRepo.Insert(ctx, storage.Notification{
				UserID: workerID,
				TaskID: payload.TaskID,
				Kind:   "task_assigned",
				Title:  "New task assignment",
				Body:   body,
			}); err != nil {
				logger.Error("failed to persist notification", "err", err)
				return err
			}
		}
		if payload.Department != "" {
			notice := fmt.Sprintf("%d worker(s) booked for %q (%s to %s).",
				len(payload.WorkerIDs), payload.Title, payload.StartDate, payload.EndDate)
			if err := chatSender.Send(ctx, payload.Department, notice); err != nil {
				logger.Warn("chat notice failed", "err", err, "channel", payload.Department)
			}
		}
		logger.Info("assignment notifications created", "task_id", payload.TaskID, "workers", len(payload.WorkerIDs))
		return nil
	})

	startConsumer("taskpool.task.completed.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload taskEventPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid task completed payload", "err", err)
			return nil
		}
		if payload.TaskID == "" {
			return nil
		}
		for _, workerID := range payload.WorkerIDs {
			if err := notificationsRepo.Insert(ctx, storage.Notification{
				UserID: workerID,
				TaskID: payload.TaskID,
				Kind:   "task_completed",
				Title:  "Task completed",
				Body:   fmt.Sprintf("%q was marked completed. Thanks for your work.", payload.Title),
			}); err != nil {
				logger.Error("failed to persist notification", "err", err)
				return err
			}
		}
		if payload.Department != "" {
			if err := chatSender.Send(ctx, payload.Department, fmt.Sprintf("%q completed.", payload.Title)); err != nil {
				logger.Warn("chat notice failed", "err", err, "channel", payload.Department)
			}
		}
		return nil
	})

	startConsumer("taskpool.task.status.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			TaskID    string `json:"task_id"`
			Title     string `json:"title"`
			CreatedBy string `json:"created_by"`
			Status    string `json:"status"`
			ChangedBy string `json:"changed_by"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid task status payload", "err", err)
			return nil
		}
		if payload.TaskID == "" || payload.CreatedBy == "" || payload.Status == "" {
			return nil
		}
		// The creator already knows about changes they made themselves.
		if payload.CreatedBy == payload.ChangedBy {
			return nil
		}
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			UserID: payload.CreatedBy,
			TaskID: payload.TaskID,
			Kind:   "task_status",
			Title:  "Task status changed",
			Body:   fmt.Sprintf("%q is now %s.", payload.Title, payload.Status),
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}
		return nil
	})

	startConsumer("taskpool.task.reviewed.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload reviewEventPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid task reviewed payload", "err", err)
			return nil
		}
		if payload.TaskID == "" || payload.WorkerID == "" {
			return nil
		}
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			UserID: payload.WorkerID,
			TaskID: payload.TaskID,
			Kind:   "task_reviewed",
			Title:  "You received a review",
			Body:   fmt.Sprintf("A manager rated your work %d/5.", payload.Rating),
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}
		return nil
	})

	startConsumer("auth.user.created.v1", func(ctx context.Context, msg kafka.Message) error {
		var payload userCreatedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid user created payload", "err", err)
			return nil
		}
		if payload.UserID == "" {
			return nil
		}
		if err := notificationsRepo.Insert(ctx, storage.Notification{
			UserID: payload.UserID,
			Kind:   "welcome",
			Title:  "Welcome to CrewDesk",
			Body:   "Browse the task pool, set up your personal schedule and volunteer for work that fits.",
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}
		if payload.Email != "" {
			name := payload.DisplayName
			if name == "" {
				name = payload.Email
			}
			body := fmt.Sprintf("Hi %s,\n\nYour CrewDesk account for the %s department is ready.\n", name, payload.Department)
			if err := emailSender.Send(payload.Email, "Welcome to CrewDesk", body); err != nil {
				logger.Warn("welcome email failed", "err", err, "recipient", payload.Email)
			}
		}
		return nil
	})

	notificationHandler := handlers.NewNotificationHandler(notificationsRepo)

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("/api/v1/notifications", notificationHandler.Feed)
	mux.HandleFunc("/api/v1/notifications/unread", notificationHandler.UnreadCount)
	mux.HandleFunc("/api/v1/notifications/read", notificationHandler.MarkRead)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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

