package main

import (
	"context"
	"net/http"
	"time"

	"github.com/crewdesk/crewdesk/libs/config"
	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/libs/httpx"
	"github.com/crewdesk/crewdesk/libs/kafkax"
	otelx "github.com/crewdesk/crewdesk/libs/otel"
	"github.com/crewdesk/crewdesk/libs/runtime"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/eligibility"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/handlers"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/outbox"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "taskpool-service")
	port, err := config.Port("PORT", "8082")
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

	taskRepo := storage.NewTaskRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers: brokers,
	})
	go publisher.Run(ctx)

	eligibilityProvider, err := eligibility.NewProvider(
		config.String("SCHEDULE_HTTP_URL", ""),
		config.String("SCHEDULE_GRPC_ADDR", ""),
	)
	if err != nil {
		logger.Error("eligibility provider init failed", "err", err)
	}
	if eligibilityProvider == nil {
		logger.Warn("schedule eligibility checks disabled (no schedule endpoint configured)")
	}

	taskHandler := handlers.NewTaskHandler(taskRepo, bookingRepo, outboxRepo, eligibilityProvider, logger)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	mux := runtime.NewBaseMux(checks...)
	mux.HandleFunc("/api/v1/tasks", taskHandler.List)
	mux.HandleFunc("/api/v1/tasks/get", taskHandler.Get)
	mux.HandleFunc("/api/v1/tasks/create", taskHandler.Create)
	mux.HandleFunc("/api/v1/tasks/approve", taskHandler.Approve)
	mux.HandleFunc("/api/v1/tasks/reject", taskHandler.Reject)
	mux.HandleFunc("/api/v1/tasks/cancel", taskHandler.Cancel)
	mux.HandleFunc("/api/v1/tasks/volunteer", taskHandler.Volunteer)
	mux.HandleFunc("/api/v1/tasks/candidates", taskHandler.Candidates)
	mux.HandleFunc("/api/v1/tasks/assign", taskHandler.Assign)
	mux.HandleFunc("/api/v1/tasks/progress", taskHandler.Progress)
	mux.HandleFunc("/api/v1/tasks/complete", taskHandler.Complete)
	mux.HandleFunc("/api/v1/tasks/reviews", taskHandler.Reviews)
	mux.HandleFunc("/api/v1/skills", taskHandler.Skills)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "taskpool")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
