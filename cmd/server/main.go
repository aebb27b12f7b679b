package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	approvalhandler "quorum/internal/approval/handler"
	"quorum/internal/approval/metrics"
	"quorum/internal/approval/ports"
	quotasvc "quorum/internal/approval/service/quota"
	workflowsvc "quorum/internal/approval/service/workflow"
	membershipstore "quorum/internal/approval/store/membership"
	quotastore "quorum/internal/approval/store/quota"
	rulestore "quorum/internal/approval/store/rule"
	votestore "quorum/internal/approval/store/vote"
	workflowstore "quorum/internal/approval/store/workflow"
	"quorum/internal/jwttoken"
	"quorum/internal/platform/config"
	"quorum/internal/platform/httpserver"
	"quorum/internal/platform/logger"
	platformredis "quorum/internal/platform/redis"
	auditkafka "quorum/pkg/platform/audit/kafka"
	"quorum/pkg/platform/audit/publisher"
	auditmemory "quorum/pkg/platform/audit/store/memory"
	"quorum/pkg/platform/middleware/auth"
	request "quorum/pkg/platform/middleware/request"
	"quorum/pkg/platform/middleware/requesttime"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		votes      ports.VoteStore
		workflows  ports.WorkflowStore
		rules      ports.RuleStore
		membership ports.MembershipReader
		quotas     ports.QuotaStore
		usage      ports.UsageReader
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		votes = votestore.NewPostgres(db)
		workflows = workflowstore.NewPostgres(db)
		rules = rulestore.NewPostgres(db)
		membership = membershipstore.NewPostgres(db)
		quotas = quotastore.NewPostgres(db)
		usage = quotastore.NewPostgresUsageReader(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		votes = votestore.New()
		workflows = workflowstore.New()
		rules = rulestore.New()
		membership = membershipstore.New()
		quotas = quotastore.New()
		usage = quotastore.NewUsageReader()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		membership = membershipstore.NewRedisCache(redisClient.Client, membership,
			membershipstore.WithCacheTTL(cfg.Redis.CacheTTL),
			membershipstore.WithCacheLogger(log),
		)
	}

	var sink publisher.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := auditkafka.NewSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	} else {
		log.Warn("KAFKA_BROKERS not set, keeping audit events in memory")
		sink = auditmemory.NewInMemoryStore()
	}

	var pubOpts []publisher.Option
	if cfg.AuditBufferSize > 0 {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(cfg.AuditBufferSize))
	}
	auditPublisher := publisher.NewPublisher(sink, pubOpts...)
	defer auditPublisher.Close()

	m := metrics.New()

	workflowService, err := workflowsvc.New(votes, workflows, rules, membership,
		workflowsvc.WithLogger(log),
		workflowsvc.WithAuditPublisher(auditPublisher),
		workflowsvc.WithMetrics(m),
	)
	if err != nil {
		log.Error("failed to build workflow service", "error", err)
		os.Exit(1)
	}
	quotaService, err := quotasvc.New(quotas, usage,
		quotasvc.WithLogger(log),
		quotasvc.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("failed to build quota service", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "quorum", "quorum-api")
	handler := approvalhandler.New(workflowService, quotaService, log)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(request.Middleware)
	router.Use(requesttime.Middleware)

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtService, log))
		handler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting quorum", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
