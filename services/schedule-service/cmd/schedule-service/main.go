package main

import (
	"context"
	"net/http"
	"time"

	"github.com/crewdesk/crewdesk/libs/config"
	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/libs/httpx"
	otelx "github.com/crewdesk/crewdesk/libs/otel"
	"github.com/crewdesk/crewdesk/libs/runtime"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/availability"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/handlers"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "schedule-service")
	port, err := config.Port("PORT", "8084")
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

	repo := storage.NewScheduleRepository(pool)
	resolver := availability.NewResolver(repo)
	scheduleHandler := handlers.NewScheduleHandler(repo, resolver, logger)

	if err := startGrpcServer(ctx, logger, resolver); err != nil {
		logger.Error("grpc server init failed", "err", err)
	}

	mux := runtime.NewBaseMux(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/schedule/timeline", scheduleHandler.Timeline)
	mux.HandleFunc("/api/v1/schedule/eligibility", scheduleHandler.Eligibility)
	mux.HandleFunc("/api/v1/schedule/personal-tasks", scheduleHandler.ListPersonalTasks)
	mux.HandleFunc("/api/v1/schedule/personal-tasks/create", scheduleHandler.CreatePersonalTask)
	mux.HandleFunc("/api/v1/schedule/personal-tasks/update", scheduleHandler.UpdatePersonalTask)
	mux.HandleFunc("/api/v1/schedule/personal-tasks/delete", scheduleHandler.DeletePersonalTask)
	mux.HandleFunc("/api/v1/schedule/personal-tasks/reschedule", scheduleHandler.Reschedule)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "schedule")
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
