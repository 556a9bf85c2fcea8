package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/arvel/coherenced/internal/coherence"
	"codeberg.org/arvel/coherenced/internal/config"
	"codeberg.org/arvel/coherenced/internal/errors"
	"codeberg.org/arvel/coherenced/internal/ingest"
	"codeberg.org/arvel/coherenced/internal/logger"
	"codeberg.org/arvel/coherenced/internal/pid"
	"codeberg.org/arvel/coherenced/internal/telemetry"
)

var (
	cfg       *config.Config
	policy    coherence.Policy
	tracker   *coherence.Tracker
	collector telemetry.Collector
	source    *ingest.Source
	lastReady *bool
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		// Config validation already rejected unknown levels
		level = logger.InfoLevel
	}
	logger.Init(level, cfg.LogFile, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	tracker = coherence.NewTracker()
	policy = cfg.Policy()

	var err error
	collector, err = telemetry.NewService(telemetryConfig(), logger.Default())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	source, err = ingest.Open(cfg.Source)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open update source")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	go func() {
		if err := source.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("update source failed")
		}
	}()

	if err := loop(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	cleanup()
}

func telemetryConfig() telemetry.Config {
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry && !cfg.Monitor
	if cfg.TelemetryDB != "" {
		telemetryCfg.DBPath = cfg.TelemetryDB
	}

	return telemetryCfg
}

func loop(ctx context.Context) error {
	interval := time.Duration(cfg.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging readiness status...")
	}

	updates := source.Updates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				// Feed drained; keep evaluating the last snapshot
				updates = nil
				continue
			}
			applyUpdate(update)
		case <-ticker.C:
			evaluate(ctx)
		}
	}
}

func applyUpdate(update ingest.Update) {
	tracker.Update(update.Incoherence, update.SelfModeling, update.MemoryIntegrity, update.Domains)

	logger.Debug().
		Str("event_id", update.EventID).
		Float64("incoherence", update.Incoherence).
		Float64("self_modeling", update.SelfModeling).
		Float64("memory_integrity", update.MemoryIntegrity).
		Int("domains", len(update.Domains)).
		Msg("Applied metric update")
}

func evaluate(ctx context.Context) {
	verdict := tracker.Explain(policy)
	snapshot := tracker.Snapshot()
	avgIncoherence := tracker.AverageIncoherence()

	logVerdict(snapshot, avgIncoherence, verdict)

	if lastReady == nil || *lastReady != verdict.Ready {
		logger.Info().
			Bool("ready", verdict.Ready).
			Int("failed_checks", len(verdict.Failures)).
			Msg("Readiness state changed")
		ready := verdict.Ready
		lastReady = &ready
	}

	if err := collector.Record(ctx, &telemetry.Snapshot{
		Timestamp:          time.Now(),
		Metrics:            snapshot,
		AverageIncoherence: avgIncoherence,
		Ready:              verdict.Ready,
	}); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("failed to record telemetry")
		} else {
			logger.Error().Err(err).Msg("failed to record telemetry")
		}
	}
}

func logVerdict(snapshot coherence.Snapshot, avgIncoherence float64, verdict coherence.Verdict) {
	event := logger.Debug().
		Float64("incoherence", snapshot.Incoherence).
		Float64("avg_incoherence", avgIncoherence).
		Float64("max_incoherence", policy.MaxIncoherence).
		Float64("self_modeling", snapshot.SelfModeling).
		Float64("min_self_modeling", policy.MinSelfModeling).
		Float64("memory_integrity", snapshot.MemoryIntegrity).
		Float64("min_memory_integrity", policy.MinMemoryIntegrity).
		Float64("min_domain_stabilization", policy.MinDomainStabilization).
		Interface("domains", snapshot.Domains).
		Bool("ready", verdict.Ready)

	if !verdict.Ready {
		event = event.Interface("failures", verdict.Failures)
	}

	event.Msg("")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if err := source.Close(); err != nil {
		logger.Debug().Err(err).Msg("failed to close update source")
	}
	if err := collector.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close telemetry")
	}
	logger.Info().Msg("Exiting...")
}
