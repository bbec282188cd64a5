package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RailSentinelAPI/internal/alerting"
	"RailSentinelAPI/internal/config"
	"RailSentinelAPI/internal/database"
	"RailSentinelAPI/internal/engine/congestion"
	"RailSentinelAPI/internal/engine/orchestrator"
	"RailSentinelAPI/internal/engine/predictor"
	"RailSentinelAPI/internal/engine/routing"
	"RailSentinelAPI/internal/engine/rules"
	"RailSentinelAPI/internal/engine/suggest"
	"RailSentinelAPI/internal/handler"
	"RailSentinelAPI/internal/ingest"
	"RailSentinelAPI/internal/logger"
	"RailSentinelAPI/internal/metrics"
	"RailSentinelAPI/internal/mqtt"
	"RailSentinelAPI/internal/repository"
	"RailSentinelAPI/internal/runner"
	"RailSentinelAPI/internal/server"
	"RailSentinelAPI/internal/websocket"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger since main logger isn't ready
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	cfg.Print()
	log.Info("Starting Rail Sentinel API Server")

	// 3. Database Connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema: %v", err)
	}
	log.Info("Database connected successfully")

	// 4. Repositories
	alertRepo := repository.NewAlertRepository(db.DB)
	assessmentRepo := repository.NewAssessmentRepository(db.DB)

	// Background cleanup of archived rows past the retention window.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := alertRepo.DeleteOld(ctx, cfg.Database.Retention); err == nil && n > 0 {
					log.Info("Cleanup removed %d resolved alerts past retention", n)
				}
				if n, err := assessmentRepo.DeleteOld(ctx, cfg.Database.Retention); err == nil && n > 0 {
					log.Info("Cleanup removed %d archived assessments past retention", n)
				}
			}
		}
	}()

	// 5. Static topology and feed assembler
	topology, err := ingest.LoadTopology(cfg.Feed.TopologyFile)
	if err != nil {
		log.Fatal("Failed to load topology: %v", err)
	}
	log.Info("Topology loaded: %d segments, %d routes", len(topology.Segments), len(topology.Routes))

	assembler := ingest.NewAssembler(ingest.Config{
		LateWindow:     cfg.Feed.LateWindow,
		SilenceTimeout: cfg.Feed.SilenceTimeout,
	}, topology, log)

	// 6. WebSocket hub and metrics
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	collector := metrics.NewCollector()

	// 7. MQTT feed
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		MQTT:   &cfg.MQTT,
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create MQTT client: %v", err)
	}
	defer func() {
		if err := mqttClient.Disconnect(); err != nil {
			log.Error("Failed to disconnect MQTT: %v", err)
		}
	}()

	if err := mqttClient.Connect(); err != nil {
		log.Fatal("Failed to connect to MQTT broker: %v", err)
	}

	feed := mqtt.NewFeed(mqttClient, assembler, &cfg.MQTT, collector, log)
	if err := feed.Start(); err != nil {
		log.Fatal("Failed to start feed subscriptions: %v", err)
	}

	// 8. Evaluation pipeline
	ruleEngine := rules.DefaultEngine(rules.Config{
		MinSeparationM:     cfg.Engine.MinSeparationM,
		HardFloorM:         cfg.Engine.HardFloorM,
		SpeedOverageFactor: cfg.Engine.SpeedOverageFactor,
	}, log)

	orch := orchestrator.New(
		ruleEngine,
		predictor.NewKinematicPredictor(),
		congestion.NewMonitor(cfg.Engine.OverloadThreshold),
		routing.NewAnalyzer(),
		orchestrator.Config{
			CycleBudget:        cfg.Engine.CycleBudget,
			RuleDeadline:       cfg.Engine.RuleDeadline,
			PredictorDeadline:  cfg.Engine.PredictorDeadline,
			CongestionDeadline: cfg.Engine.CongestionDeadline,
			PredictionHorizonS: cfg.Engine.PredictionHorizon.Seconds(),
			ForecastHorizon:    cfg.Engine.ForecastHorizon,
		},
		log,
	)

	alertManager := alerting.NewManager(alertRepo, hub, log)

	loop := runner.New(
		assembler,
		orch,
		suggest.NewGenerator(),
		alertManager,
		assessmentRepo,
		hub,
		collector,
		runner.Config{Interval: cfg.Engine.CycleInterval},
		log,
	)
	go loop.Run(ctx)

	// 9. Handlers and HTTP server
	alertHandler := handler.NewAlertHandler(alertManager, log)
	riskHandler := handler.NewRiskHandler(loop, orch.Port(), assembler, assessmentRepo, log)
	topologyHandler := handler.NewTopologyHandler(topology, log)
	healthHandler := handler.NewHealthHandler(db, mqttClient, loop, log)

	srv := server.New(cfg, log)
	srv.RegisterHandlers(alertHandler, riskHandler, topologyHandler, healthHandler, collector, hub)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed: %v", err)
		}
	}()

	log.Info("API server ready on http://%s:%d", cfg.Server.Host, cfg.Server.Port)

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}
