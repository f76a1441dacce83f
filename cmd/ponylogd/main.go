// ponylogd is the vehicle telemetry logging daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openpony/ponylog/internal/buffer"
	"github.com/openpony/ponylog/internal/control"
	"github.com/openpony/ponylog/internal/loader"
	"github.com/openpony/ponylog/internal/logging"
	"github.com/openpony/ponylog/internal/quota"
	"github.com/openpony/ponylog/internal/sched"
	"github.com/openpony/ponylog/internal/sensors"
	"github.com/openpony/ponylog/internal/session"
	"github.com/openpony/ponylog/internal/stats"
	"github.com/openpony/ponylog/internal/telemetry"
)

// Version is set at build time via ldflags
var Version = "dev"

// logSink publishes snapshots to the structured log. Stands in for a
// display or network telemetry backend.
type logSink struct{}

func (logSink) Publish(s telemetry.Snapshot) error {
	logging.Debug("telemetry",
		"seq", s.Seq,
		"g_total", fmt.Sprintf("%.3f", s.GTotal),
		"fix", s.Fix.Type.String(),
		"sats", s.Fix.Sats,
		"drops", s.DropCount)
	return nil
}

func main() {
	cfgPath := flag.String("config", "/etc/ponylog/config.yaml", "config file path")
	dataDir := flag.String("data-dir", "", "session directory (overrides config)")
	listen := flag.String("listen", "", "control listen address (overrides config)")
	simulate := flag.Bool("simulate", false, "use simulated sensor drivers")
	autoStart := flag.Bool("auto-start", false, "open a session at startup")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ponylogd %s\n", Version)
		return
	}

	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *listen != "" {
		cfg.Control.Listen = *listen
	}
	if *simulate {
		cfg.Sampling.Simulate = true
	}
	if *autoStart {
		cfg.Logging.AutoStart = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("main")
	log.Info("ponylogd starting", "version", Version, "data_dir", cfg.DataDir)

	// =========================================================================
	// Sensors
	// =========================================================================

	var suite *sensors.Suite
	if cfg.Sampling.Simulate {
		suite = sensors.NewSimSuite()
		log.Info("using simulated sensor drivers")
	} else {
		// Bus drivers register themselves in hardware builds. An empty
		// suite reads zeros, which still exercises the full pipeline.
		suite = &sensors.Suite{}
		log.Warn("no sensor drivers registered")
	}

	// =========================================================================
	// Pipeline
	// =========================================================================

	ring := buffer.New(cfg.Sampling.BufferCapacity)
	cell := telemetry.NewCell()
	tracker := telemetry.NewSatelliteTracker()
	gforce := stats.NewGForce()

	writer, err := session.NewWriter(session.Options{
		Dir:         cfg.DataDir,
		Compression: cfg.CompressionEnabled(),
		FlushFrames: cfg.Logging.FlushFrames,
		Manifest:    hardwareManifest(cfg),
	})
	if err != nil {
		log.Error("create session writer", "error", err)
		os.Exit(1)
	}

	quotaMgr, err := quota.New(quota.Options{
		Dir:           cfg.DataDir,
		HighWaterMark: cfg.Storage.HighWaterMark,
		LowWaterMark:  cfg.Storage.LowWaterMark,
	})
	if err != nil {
		log.Error("create quota manager", "error", err)
		os.Exit(1)
	}

	var wd sched.Watchdog = sched.NopWatchdog{}
	if cfg.Watchdog.Device != "" {
		fwd, err := sched.OpenFileWatchdog(cfg.Watchdog.Device)
		if err != nil {
			log.Error("open watchdog device", "device", cfg.Watchdog.Device, "error", err)
			os.Exit(1)
		}
		wd = fwd
		log.Info("hardware watchdog armed", "device", cfg.Watchdog.Device)
	}

	// =========================================================================
	// Tasks
	// =========================================================================

	runner := sched.NewRunner(0)
	tasks := []sched.Task{
		sched.AcquisitionTask(suite, ring, cell, wd,
			cfg.Sampling.Period, cfg.Watchdog.FeedInterval),
		sched.LoggingTask(ring, writer, gforce,
			cfg.Logging.Period, cfg.Logging.FlushInterval),
		sched.PublicationTask(cell, logSink{}, cfg.Sampling.PublishPeriod),
		sched.SatelliteTask(suite, tracker, cell, cfg.Sampling.SatelliteSweepInterval),
		sched.QuotaTask(quotaMgr, writer, cfg.Storage.CheckInterval),
	}
	for _, t := range tasks {
		if err := runner.Register(t); err != nil {
			log.Error("register task", "error", err)
			os.Exit(1)
		}
	}

	if err := runner.Start(context.Background()); err != nil {
		log.Error("start runner", "error", err)
		os.Exit(1)
	}

	if cfg.Logging.AutoStart {
		if path, err := writer.Start(""); err != nil {
			log.Error("auto-start session", "error", err)
		} else {
			gforce.Reset()
			log.Info("session auto-started", "file", path)
		}
	}

	// =========================================================================
	// Control Server
	// =========================================================================

	ctrl := control.NewServer(control.Options{Address: cfg.Control.Listen}, control.Deps{
		Ring:   ring,
		Cell:   cell,
		Writer: writer,
		Quota:  quotaMgr,
		GForce: gforce,
		Runner: runner,
		Dir:    cfg.DataDir,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- ctrl.Run()
	}()

	// =========================================================================
	// Signal Handling and Graceful Shutdown
	// =========================================================================

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("shutting down", "signal", s.String())
	case err := <-errCh:
		if err != nil {
			log.Error("control server failed", "error", err)
		}
	}

	ctrl.Shutdown()
	runner.Stop()

	if writer.IsOpen() {
		if summary, err := writer.Stop(); err != nil {
			log.Error("close session", "error", err)
		} else {
			log.Info("session closed on shutdown",
				"file", summary.Name, "frames", summary.Frames)
		}
	}

	if err := wd.Close(); err != nil {
		log.Warn("close watchdog", "error", err)
	}

	log.Info("ponylogd stopped")
}

// hardwareManifest builds the per-session hardware declaration.
func hardwareManifest(cfg *loader.Config) *session.Manifest {
	m := &session.Manifest{}
	if cfg.Sampling.Simulate {
		m.Add(session.HWIMU, session.ConnBuiltin, "sim-imu")
		m.Add(session.HWGPS, session.ConnBuiltin, "sim-gps")
	} else {
		m.Add(session.HWStorage, session.ConnBuiltin, "fs:"+cfg.DataDir)
	}
	return m
}
