// maprtd hosts the fleet map runtime as a standalone daemon. A browser (or
// any host application) drives the map through WebSocket commands; the
// runtime owns the rendering engine and all layer state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/fleetlens/maprt/internal/api"
	"github.com/fleetlens/maprt/internal/cache"
	"github.com/fleetlens/maprt/internal/config"
	"github.com/fleetlens/maprt/internal/dispatcher"
	"github.com/fleetlens/maprt/internal/engine"
	"github.com/fleetlens/maprt/internal/engine/memory"
	"github.com/fleetlens/maprt/internal/engine/stream"
	"github.com/fleetlens/maprt/internal/handlers"
	"github.com/fleetlens/maprt/internal/influx"
	"github.com/fleetlens/maprt/internal/layer"
	"github.com/fleetlens/maprt/internal/logging"
	"github.com/fleetlens/maprt/internal/monitor"
	intotel "github.com/fleetlens/maprt/internal/otel"
	"github.com/fleetlens/maprt/internal/replay"
	"github.com/fleetlens/maprt/internal/runtime"
	"github.com/fleetlens/maprt/internal/sim"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"

	appName = "maprtd"
)

func main() {
	configDir := flag.String("config", ".", "directory containing maprtd.cfg.json")
	listenOverride := flag.String("listen", "", "override listen address from config")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildDate)
		return
	}

	sessionStart := time.Now()

	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err)
	} else {
		logger.Info("Loaded config", "dir", *configDir)
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, appName, sessionStart)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("Failed to open log file, logging to stdout only", "error", err, "path", logFilePath)
	}

	// OTel provider, before the final logging setup so the slog bridge can use it
	var otelProvider *intotel.Provider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		otelProvider, err = intotel.New(intotel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	// Optional GELF target
	var gelfWriter *gelf.Writer
	if viper.GetBool("graylog.enabled") {
		gelfWriter, err = gelf.NewWriter(viper.GetString("graylog.address"))
		if err != nil {
			logger.Error("Failed to connect GELF writer", "error", err, "address", viper.GetString("graylog.address"))
			gelfWriter = nil
		}
	}

	// Re-setup logging with file output, OTel bridge, and GELF
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}
	if gelfWriter != nil {
		slogManager.Setup(logFile, viper.GetString("logLevel"), otelLogProvider, gelfWriter)
	} else {
		slogManager.Setup(logFile, viper.GetString("logLevel"), otelLogProvider)
	}
	logger = slogManager.Logger()
	logger.Info("Starting up", "version", Version, "buildDate", BuildDate, "log", logFilePath)

	// zerolog feeds the database and telemetry plumbing
	zlogOut := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zlog := zerolog.New(zlogOut).With().Timestamp().Logger()
	if logFile != nil {
		zlog = zerolog.New(logFile).With().Timestamp().Logger()
	}

	// Rendering engine
	engCfg := config.GetEngineConfig()
	var eng engine.Engine
	switch engCfg.Kind {
	case "stream":
		eng = stream.New(stream.Config{URL: engCfg.URL, Secret: engCfg.Secret}, logger)
		logger.Info("Using streaming engine", "url", engCfg.URL)
	default:
		eng = memory.New()
		logger.Info("Using in-memory engine")
	}

	entityCache := cache.New(0)
	registry := layer.NewRegistry(float64(viper.GetInt("nominalCapacity")), entityCache, logger)

	// Replay recorder, Postgres with SQLite fallback
	var recorder *replay.Recorder
	var replayDB *replay.Manager
	if viper.GetBool("replay.enabled") {
		replayDB = replay.NewManager(zlog)
		if err := replayDB.Connect(); err != nil {
			logger.Warn("Replay persistence unavailable", "error", err)
			replayDB = nil
		} else if err := replayDB.Setup(); err != nil {
			logger.Warn("Replay schema migration failed", "error", err)
			replayDB = nil
		} else {
			recorder = replay.NewRecorder(replayDB, zlog)
			if d, err := time.ParseDuration(viper.GetString("replay.flushInterval")); err == nil && d > 0 {
				recorder.SetFlushInterval(d)
			}
			recorder.Start()
			logger.Info("Replay recorder started", "local", replayDB.ShouldSaveLocal)
		}
	}

	// InfluxDB telemetry
	var metrics *influx.Manager
	if viper.GetBool("influx.enabled") {
		metrics = influx.NewManager(zlog, filepath.Join(logsDir, "influx_backup.gz"))
		if err := metrics.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable", "error", err)
			metrics = nil
		} else {
			metrics.CreateWriters()
		}
	}

	// Review portal for exported replay sessions
	var portal *api.Client
	if viper.GetBool("api.enabled") {
		portal = api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
		if err := portal.Healthcheck(); err != nil {
			logger.Info("Review portal is offline", "error", err)
		} else {
			logger.Info("Review portal is online")
		}
	}

	rtOpts := []runtime.Option{runtime.WithLoadTimeout(config.GetLoadTimeout())}
	if recorder != nil {
		rtOpts = append(rtOpts,
			runtime.WithSimEventSink(recorder.EventSink()),
			runtime.WithSimTickSink(recorder.TickSink()),
		)
	}

	rt, err := runtime.New(eng, registry, logger, rtOpts...)
	if err != nil {
		logger.Error("Failed to create map runtime", "error", err)
		os.Exit(1)
	}

	// Handlers see the runtime state on every record
	ctxLogger := slog.New(logging.NewContextHandler(logger.Handler(), func() []slog.Attr {
		return []slog.Attr{slog.String("mapState", rt.State().String())}
	}))

	svc := handlers.NewService(handlers.Dependencies{
		Runtime:         rt,
		Logger:          ctxLogger,
		DemoDefaults:    demoDefaults(),
		NominalCapacity: float64(viper.GetInt("nominalCapacity")),
		Metrics:         metrics,
		Version:         Version,
		OnDemoStart: func(cfg sim.Config) {
			if recorder == nil {
				return
			}
			if err := recorder.Begin(cfg); err != nil {
				logger.Warn("Failed to begin replay session", "error", err)
			}
		},
		OnDemoStop: func() {
			if recorder == nil {
				return
			}
			if err := recorder.End(); err != nil {
				logger.Warn("Failed to end replay session", "error", err)
				return
			}
			if portal != nil {
				go uploadLatestSession(recorder, portal, logsDir, logger)
			}
		},
	})

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		logger.Error("Failed to create dispatcher", "error", err)
		os.Exit(1)
	}
	registerCommands(disp, svc)
	logger.Info("Command dispatcher ready", "commands", len(disp.Commands()))

	mon := monitor.NewService(monitor.Dependencies{
		Runtime:   rt,
		Registry:  registry,
		Metrics:   metrics,
		Logger:    ctxLogger,
		StatusDir: logsDir,
	})
	if err := mon.Start(); err != nil {
		logger.Warn("Status monitor failed to start", "error", err)
	}

	listenAddr := viper.GetString("listen.address")
	if *listenOverride != "" {
		listenAddr = *listenOverride
	}
	srv := newCommandServer(listenAddr, disp, ctxLogger)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("Command server stopped", "error", err)
		}
	}()
	logger.Info("Listening for host commands", "address", listenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv.Shutdown(shutdownCtx)
	mon.Stop()
	rt.Close()
	if recorder != nil {
		recorder.Stop()
	}
	if replayDB != nil {
		replayDB.Close()
	}
	if metrics != nil {
		metrics.Close()
	}
	slogManager.Flush(shutdownCtx)
	if otelProvider != nil {
		otelProvider.Shutdown(shutdownCtx)
	}
	if logFile != nil {
		logFile.Close()
	}
}

// uploadLatestSession exports the most recent replay session and pushes the
// archive to the review portal. Runs off the command path; failures only log.
func uploadLatestSession(recorder *replay.Recorder, portal *api.Client, dir string, logger *slog.Logger) {
	sessions, err := recorder.Sessions(1)
	if err != nil || len(sessions) == 0 {
		logger.Warn("No replay session to upload", "error", err)
		return
	}
	s := sessions[0]

	path, err := recorder.Export(s.ID, dir)
	if err != nil {
		logger.Warn("Failed to export replay session", "error", err, "session", s.ID)
		return
	}

	meta := api.SessionMetadata{
		SessionID: s.ID,
		Seed:      s.Seed,
		Vehicles:  s.Vehicles,
		StartedAt: s.StartedAt,
	}
	if s.EndedAt != nil {
		meta.DurationSec = s.EndedAt.Sub(s.StartedAt).Seconds()
	}
	if err := portal.UploadSession(path, meta); err != nil {
		logger.Warn("Failed to upload replay session", "error", err, "session", s.ID)
		return
	}
	logger.Info("Replay session uploaded", "session", s.ID, "path", path)
}

// demoDefaults builds the demo simulation config from the builtin fleet
// dataset overlaid with the sim section of the config file.
func demoDefaults() sim.Config {
	cfg := sim.DemoFleet()
	sc := config.GetSimConfig()
	if sc.Seed != 0 {
		cfg.Seed = sc.Seed
	}
	if sc.Vehicles > 0 {
		cfg.Vehicles = sc.Vehicles
	}
	if sc.TickMs > 0 {
		cfg.TickInterval = time.Duration(sc.TickMs) * time.Millisecond
	}
	if sc.PlaybackSpeed > 0 {
		cfg.PlaybackSpeed = sc.PlaybackSpeed
	}
	return cfg
}
