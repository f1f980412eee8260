package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/audit"
	"github.com/vtuberd/control-plane/internal/chatfilter"
	"github.com/vtuberd/control-plane/internal/chatingest"
	"github.com/vtuberd/control-plane/internal/chatplatform"
	"github.com/vtuberd/control-plane/internal/config"
	"github.com/vtuberd/control-plane/internal/httpapi"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/scheduler"
	"github.com/vtuberd/control-plane/internal/session"
	"github.com/vtuberd/control-plane/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	sink, err := audit.NewSink(ctx, cfg.AuditDSN)
	if err != nil {
		log.Fatalf("audit sink init failed: %v", err)
	}
	defer sink.Close()

	ag, err := agent.NewAgent(agent.Config{Mode: cfg.AgentMode, HTTPURL: cfg.AgentHTTPURL})
	if err != nil {
		log.Fatalf("agent init failed: %v", err)
	}

	descriptor := model.DefaultDescriptor(
		cfg.DefaultCharacterName,
		cfg.DefaultAvatarRef,
		map[string]int{"happy": 1, "sad": 2, "angry": 3, "surprised": 4},
		map[string][]int{"idle": {0, 1}, "talk": {0, 1, 2}},
	)

	sessions := session.NewManager(
		cfg.SessionOutboundCapacity,
		cfg.SessionReplyTimeout,
		descriptor,
		tts.NewMockSynthesizer(),
		ag,
		metrics,
		cfg.ChatResponseOrigin,
	)

	sched := scheduler.New(sessions, ag, metrics, sink, cfg.AutonomousMinInterval, cfg.AutonomousMaxInterval, cfg.AutonomousEnabled)

	spam := chatfilter.NewSpamFilter()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		spam = chatfilter.NewSpamFilterWithStore(chatfilter.NewRedisWindowStore(redisClient))
	}
	quality := chatfilter.NewQualityScorerWithCooldown(cfg.ChatCooldown)

	var webhook *chatplatform.WebhookSource
	var pipeline *chatingest.Pipeline
	if cfg.ChatWebhookEnabled {
		webhook = chatplatform.NewWebhookSource(cfg.ChatWebhookBuffer)
		pipeline = chatingest.New(webhook, sessions, spam, quality, ag, metrics, sink)
		if err := pipeline.Start(ctx); err != nil {
			log.Fatalf("chat ingest pipeline start failed: %v", err)
		}
		defer pipeline.Stop()
	}

	api := httpapi.New(cfg, sessions, sched, webhook, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sched.Start(runCtx)
	defer sched.Stop()

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
