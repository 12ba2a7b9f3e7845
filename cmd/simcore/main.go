package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matchforge/simcore/cmd/simcore/internal/out"
	"github.com/matchforge/simcore/pkg/config"
	"github.com/matchforge/simcore/pkg/container"
	"github.com/matchforge/simcore/pkg/containermanager"
	"github.com/matchforge/simcore/pkg/health"
	"github.com/matchforge/simcore/pkg/log"
	"github.com/matchforge/simcore/pkg/metrics"
	"github.com/matchforge/simcore/pkg/snapshotsink"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "simcore",
	Short:   "simcore - embeddable multi-tenant game simulation core",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"simcore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table, json, yaml)")

	cobra.OnInitialize(initEnv)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(containerCmd)
	rootCmd.AddCommand(moduleCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(commandCmd)
}

func initEnv() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	format, _ := rootCmd.PersistentFlags().GetString("output")
	out.SetFormat(format)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simcore process hosting one container, serving metrics and health",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Duration("tick-interval", 50*time.Millisecond, "Tick interval for auto-advance")
	runCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics, /health, /ready on")
	runCmd.Flags().String("snapshot-db", "", "Path to a bbolt database for durable snapshot persistence (disabled if empty)")
	runCmd.Flags().String("snapshot-on-tick", "none", "What to persist to --snapshot-db after each tick: none, full, delta")
}

func runRun(cmd *cobra.Command, args []string) error {
	tickInterval, _ := cmd.Flags().GetDuration("tick-interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	snapshotDB, _ := cmd.Flags().GetString("snapshot-db")
	snapshotOnTick, _ := cmd.Flags().GetString("snapshot-on-tick")

	metrics.SetVersion(Version)

	manager := containermanager.New()
	metrics.RegisterComponent("containermanager", true, "accepting container operations")
	collector := metrics.NewCollector(manager)
	collector.Start()
	defer collector.Stop()

	cfg := container.DefaultConfig()
	cfg.TickIntervalMS = int(tickInterval / time.Millisecond)

	var opts []container.Option
	if snapshotDB != "" {
		cfg.SnapshotOnTick = config.SnapshotMode(snapshotOnTick)
		sink, err := snapshotsink.Open(snapshotDB, cfg.SnapshotSinkQueueDepth)
		if err != nil {
			return fmt.Errorf("open snapshot sink: %w", err)
		}
		defer sink.Close()
		opts = append(opts, container.WithSnapshotSink(sink))
	}

	c := manager.CreateWithOptions(cfg, opts...)
	if err := c.Modules().Install(demoModule()); err != nil {
		return fmt.Errorf("install demo module: %w", err)
	}
	metrics.RegisterComponent("registry", true, "demo module installed")
	if err := c.Start(); err != nil {
		return fmt.Errorf("start container %s: %w", c.ID(), err)
	}

	stopTickWatch := watchTickStaleness(c, tickInterval)
	defer stopTickWatch()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		log.Logger.Info().Str("addr", metricsAddr).Msg("serving metrics and health endpoints")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	out.PrintMessage(fmt.Sprintf("container %s running, tick interval %s", c.ID(), tickInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	out.PrintMessage("shutting down")
	_ = manager.Destroy(c.ID())
	return nil
}

// watchTickStaleness polls c's tick clock against a staleness checker and
// reflects the result in the /health and /ready components, so an
// orchestrator can detect a container whose worker has stalled. It
// degrades to unhealthy only after the checker's configured retry count,
// so a single slow tick does not flap the reported status.
func watchTickStaleness(c *container.Container, tickInterval time.Duration) (stop func()) {
	checker := health.NewTickStaleness(c, 10*tickInterval)
	cfg := health.DefaultConfig()
	status := health.NewStatus()

	stopCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				result := checker.Check(context.Background())
				status.Update(result, cfg)
				if !status.InStartPeriod(cfg) {
					metrics.UpdateComponent("tick", status.Healthy, result.Message)
				}
			case <-stopCh:
				return
			}
		}
	}()
	return func() { close(stopCh) }
}
