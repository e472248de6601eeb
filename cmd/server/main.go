// Server runs the ticketflow HTTP API: authentication, session management,
// and events. Configure via .env or environment (see internal/config).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ticketflow/backend/internal/audit"
	auditrepo "ticketflow/backend/internal/audit/repository"
	authhandler "ticketflow/backend/internal/auth/handler"
	authservice "ticketflow/backend/internal/auth/service"
	"ticketflow/backend/internal/config"
	"ticketflow/backend/internal/db"
	eventhandler "ticketflow/backend/internal/event/handler"
	eventrepo "ticketflow/backend/internal/event/repository"
	eventservice "ticketflow/backend/internal/event/service"
	healthhandler "ticketflow/backend/internal/health/handler"
	policyengine "ticketflow/backend/internal/policy/engine"
	"ticketflow/backend/internal/security"
	"ticketflow/backend/internal/server"
	"ticketflow/backend/internal/server/middleware"
	sessionrepo "ticketflow/backend/internal/session/repository"
	"ticketflow/backend/internal/telemetry"
	telemetryotel "ticketflow/backend/internal/telemetry/otel"
	"ticketflow/backend/internal/telemetry/producer"
	userrepo "ticketflow/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "ticketflow-backend", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	users := userrepo.NewPostgresRepository(database)
	sessions := sessionrepo.NewPostgresRepository(database)
	events := eventrepo.NewPostgresRepository(database)
	audits := auditrepo.NewPostgresRepository(database)

	auditLogger := audit.NewLogger(audits, nil)
	policy := policyengine.NewOPAEvaluator("")
	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())

	authSvc := authservice.NewAuthService(users, sessions, policy, auditLogger, hasher, tokens, cfg.MaxSessionsPerUser)
	eventSvc := eventservice.NewEventService(events, auditLogger)

	var emitter telemetry.EventEmitter
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		if kafkaProducer != nil {
			defer func() { _ = kafkaProducer.Close() }()
			emitter = kafkaProducer
		}
	} else {
		emitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	}

	router := server.NewRouter(server.Deps{
		Auth:   authhandler.NewHandler(authSvc),
		Events: eventhandler.NewHandler(eventSvc),
		Health: healthhandler.NewHandler(database, map[string]healthhandler.Checker{
			"policy": policy.HealthCheck,
		}),
		Authn:     middleware.Identity(authSvc),
		Telemetry: emitter,
		Audit:     auditLogger,
	})
	handler := otelhttp.NewHandler(router, "http.server")

	if err := server.Run(ctx, cfg.HTTPAddr, handler); err != nil {
		log.Printf("http: %v", err)
	}

	// Let in-flight async telemetry drain before tearing down providers.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
}
