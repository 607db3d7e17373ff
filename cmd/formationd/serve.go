package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/railsim/formation/internal/broadcast"
	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/dispatcher"
	"github.com/railsim/formation/internal/influx"
	"github.com/railsim/formation/internal/logging"
	"github.com/railsim/formation/internal/monitor"
	"github.com/railsim/formation/internal/server"
	"github.com/railsim/formation/internal/sim"
	"github.com/railsim/formation/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation, the observer server and the stdin command reader",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("stdin", true, "Read commands from stdin and answer on stdout")
	serveCmd.Flags().Bool("exit-on-eof", false, "Shut down when stdin is closed")
	serveCmd.Flags().String("tag", "", "Tag attached to an uploaded export")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setupRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger
	logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simCfg := config.GetSimConfig()
	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, logger, rt.SessionStart, simCfg.FlushInterval)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	if tag, _ := cmd.Flags().GetString("tag"); tag != "" {
		if m, ok := backend.(interface{ SetTag(string) }); ok {
			m.SetTag(tag)
		}
	}

	hub, err := broadcast.NewHub(broadcast.DefaultOutboxSize, logger)
	if err != nil {
		return err
	}

	simulation, err := sim.New(sim.Dependencies{
		Storage:  backend,
		Observer: hub,
		Logger:   logger,
	}, sim.Options{
		TickInterval:  simCfg.TickInterval,
		FlushInterval: simCfg.FlushInterval,
	})
	if err != nil {
		return err
	}
	rt.SlogManager.SetContextProvider(simulation.LogAttrs)
	if err := simulation.Start(); err != nil {
		return err
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer eventDispatcher.Close()
	worker.NewManager(worker.Dependencies{Sim: simulation, Logger: logger}).RegisterHandlers(eventDispatcher)
	logger.Info("Worker handlers registered with dispatcher", "commands", eventDispatcher.Commands())

	monitorDeps := monitor.Dependencies{
		Sim:        simulation,
		Storage:    backend,
		Observers:  hub,
		StatusPath: config.GetMonitorConfig().StatusPath,
		Interval:   config.GetMonitorConfig().Interval,
		Logger:     logger,
	}
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		telemetry := newInfluxManager(rt, influxCfg)
		if err := telemetry.Connect(ctx); err != nil {
			logger.Error("Failed to connect to InfluxDB", "error", err)
		} else {
			defer telemetry.Close()
			monitorDeps.Telemetry = telemetry
			logger.Info("InfluxDB telemetry enabled", "url", telemetry.URL(), "live", telemetry.Valid())
		}
	}
	monitorService := monitor.NewService(monitorDeps)
	if err := monitorService.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	if srvCfg := config.GetServerConfig(); srvCfg.Enabled {
		srvDeps := server.Dependencies{State: simulation, Hub: hub, Logger: logger}
		if rt.OTelProvider != nil {
			srvDeps.Metrics = rt.OTelProvider.MetricsHandler()
		}
		srv := server.New(srvDeps)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, srvCfg.Address); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if useStdin, _ := cmd.Flags().GetBool("stdin"); useStdin {
		exitOnEOF, _ := cmd.Flags().GetBool("exit-on-eof")
		go func() {
			err := readCommands(ctx, os.Stdin, eventDispatcher, cmd.OutOrStdout(), logger)
			if err != nil {
				logger.Error("Command reader stopped", "error", err)
			} else {
				logger.Info("Command input closed")
			}
			if exitOnEOF {
				stop()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := simulation.Run(ctx); err != nil {
			errCh <- fmt.Errorf("simulation: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		runErr = errors.Join(runErr, err)
	}

	monitorService.Stop()
	if _, err := monitorService.Report(); err != nil {
		logger.Warn("Final status report failed", "error", err)
	}
	if err := backend.Close(); err != nil {
		logger.Error("Failed to close storage backend", "error", err)
		runErr = errors.Join(runErr, err)
	}
	uploadExport(backend, config.GetAPIConfig(), logger)

	logger.Info("Shut down", "ticks", simulation.Ticks(), "formations", simulation.FormationCount())
	return runErr
}

// newInfluxManager logs through zerolog into the session log file, or
// stderr without one, and backs points up next to the logs.
func newInfluxManager(rt *runtime, cfg config.InfluxConfig) *influx.Manager {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if rt.logFile != nil {
		zl = zerolog.New(rt.logFile).With().Timestamp().Logger()
	}
	backupPath := filepath.Join(
		viper.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.gz", ServiceName, rt.SessionStart.Format("20060102_150405")),
	)
	return influx.NewManager(cfg, zl, backupPath)
}
