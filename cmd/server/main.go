package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/voxstream/voice-relay/internal/agent"
	"github.com/voxstream/voice-relay/internal/config"
	"github.com/voxstream/voice-relay/internal/observability"
	"github.com/voxstream/voice-relay/internal/playback"
	"github.com/voxstream/voice-relay/internal/relay"
	"github.com/voxstream/voice-relay/internal/stt"
	"github.com/voxstream/voice-relay/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before the logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("agent_url", cfg.AgentURL).
		Int("source_rate", cfg.SourceSampleRate).
		Int("target_rate", cfg.TargetSampleRate).
		Int("frame_bytes", cfg.FrameBytes()).
		Msg("Voice Relay Service starting")

	hub := relay.NewHub()
	playbackManager := playback.NewManager(logger)
	agentClient := agent.NewClient(cfg, logger)
	ttsClient := tts.NewClient(cfg, logger)

	newSTT := func(sessionLogger zerolog.Logger) stt.Client {
		return stt.NewDeepgramClient(cfg, sessionLogger)
	}

	streamHandler := relay.NewHandler(cfg, hub, playbackManager, agentClient, newSTT, logger)
	control := relay.NewControl(hub, playbackManager, ttsClient, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", streamHandler.HandleStream)
	mux.HandleFunc("/playback/say", control.HandleSay)
	mux.HandleFunc("/playback/stop", control.HandleStop)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"agent":     agentClient.HealthCheck,
		"synthesis": ttsClient.HealthCheck,
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
		// No read/write timeouts: /stream and /playback/say stay open
		// for the lifetime of a conversation
	}

	go func() {
		logger.Info().
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/stream", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
