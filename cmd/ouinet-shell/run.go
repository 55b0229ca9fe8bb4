package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jeanhaley32/ouinet-shell/internal/capability"
	"github.com/jeanhaley32/ouinet-shell/internal/config"
	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/credentials"
	"github.com/jeanhaley32/ouinet-shell/internal/engine"
	"github.com/jeanhaley32/ouinet-shell/internal/events"
	"github.com/jeanhaley32/ouinet-shell/internal/lifecycle"
	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
	"github.com/jeanhaley32/ouinet-shell/internal/platform"
	"github.com/jeanhaley32/ouinet-shell/internal/state"
	"github.com/jeanhaley32/ouinet-shell/internal/terminal"
)

const metricsShutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the client and supervise it until interrupted",
		Long: `Prepares the install directory, starts the client and keeps it supervised.

SIGINT and SIGTERM stop the client and exit. SIGHUP restarts it with the
same configuration.`,
		RunE: runRun,
	}

	cmd.Flags().String("engine-binary", "", "Client executable (default ouinet-client in PATH)")
	cmd.Flags().String("metrics-listen", "", "Serve shell metrics at http://<addr>/metrics")
	cmd.Flags().Duration("poll-interval", events.DefaultPollInterval, "How often host connectivity and charging are sampled")
	cmd.Flags().Duration("start-grace", lifecycle.DefaultStartGrace, "How long a starting client may report stopped")
	cmd.Flags().Duration("stop-timeout", lifecycle.DefaultStopTimeout, "How long to wait for the client to stop")
	cmd.Flags().Bool("no-prompt", false, "Never prompt for injector credentials")
	addConfigFlags(cmd)

	return cmd
}

type runOptions struct {
	metricsListen string
	pollInterval  time.Duration
	startGrace    time.Duration
	stopTimeout   time.Duration
	noPrompt      bool
}

func readRunOptions(cmd *cobra.Command) (runOptions, error) {
	var o runOptions
	var err error
	if o.metricsListen, err = cmd.Flags().GetString("metrics-listen"); err != nil {
		return o, fmt.Errorf("invalid metrics-listen flag: %w", err)
	}
	if o.pollInterval, err = cmd.Flags().GetDuration("poll-interval"); err != nil {
		return o, fmt.Errorf("invalid poll-interval flag: %w", err)
	}
	if o.startGrace, err = cmd.Flags().GetDuration("start-grace"); err != nil {
		return o, fmt.Errorf("invalid start-grace flag: %w", err)
	}
	if o.stopTimeout, err = cmd.Flags().GetDuration("stop-timeout"); err != nil {
		return o, fmt.Errorf("invalid stop-timeout flag: %w", err)
	}
	if o.noPrompt, err = cmd.Flags().GetBool("no-prompt"); err != nil {
		return o, fmt.Errorf("invalid no-prompt flag: %w", err)
	}
	return o, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	opts, err := readRunOptions(cmd)
	if err != nil {
		return err
	}
	logger := slog.Default()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if opts.metricsListen != "" {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		stopMetrics := serveMetrics(opts.metricsListen, reg, logger)
		defer stopMetrics()
	}

	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	_, cfg, err := prepare(cmd, eng, recorder)
	if err != nil {
		return err
	}
	log := logger.With(logfields.InstallDir(cfg.InstallDir()))

	pidFile := filepath.Join(cfg.InstallDir(), constants.PidFile)
	if st := state.NewDetector(cfg.InstallDir()).Detect(); st.Running() {
		return fmt.Errorf("ouinet-shell is already running for %s (pid %d)", cfg.InstallDir(), st.RunningPid)
	}
	if err := state.WritePid(pidFile, os.Getpid()); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	defer func() {
		if err := state.RemovePid(pidFile, os.Getpid()); err != nil {
			log.Warn("Failed to remove pid file", logfields.Error(err))
		}
	}()

	hub := events.NewHub()
	forwarder := events.NewForwarder(eng, events.DefaultQueueSize, logger, recorder)
	defer forwarder.Close()

	if platform.IsLinux() {
		poller := events.NewPoller(hub, events.PollerOptions{Interval: opts.pollInterval, Logger: logger})
		go func() { _ = poller.Run(ctx) }()
	}

	controller := lifecycle.NewController(lifecycle.Options{
		Engine:      eng,
		Capability:  newCapability(logger),
		Relay:       forwarder,
		Source:      hub,
		StartGrace:  opts.startGrace,
		StopTimeout: opts.stopTimeout,
		Logger:      logger,
		Recorder:    recorder,
	})

	startCredentials(ctx, cfg, eng, opts.noPrompt, logger, recorder)

	controller.Start(cfg)
	log.Info("Client starting", logfields.PID(os.Getpid()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	exited := make(chan struct{}, 1)
	go watchExit(ctx, controller, exited)

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				log.Info("Restarting client", logfields.Signal(sig.String()))
				if err := controller.Restart(ctx, cfg); err != nil {
					log.Warn("Restart failed", logfields.Error(err))
				}
				continue
			}
			log.Info("Stopping client", logfields.Signal(sig.String()))
			return shutdown(controller, opts.stopTimeout)

		case <-exited:
			switch controller.State() {
			case engine.Failed:
				_ = shutdown(controller, opts.stopTimeout)
				return errors.New("client failed; see log for details")
			case engine.Stopped:
				return errors.New("client exited unexpectedly; see log for details")
			}

		case <-ctx.Done():
			return shutdown(controller, opts.stopTimeout)
		}
	}
}

// watchExit reports each transition into Failed or Stopped on exited. A
// restart passes through Stopped too, so the receiver rechecks the state.
func watchExit(ctx context.Context, c *lifecycle.Controller, exited chan<- struct{}) {
	for {
		if _, err := c.WaitFor(ctx, engine.Failed, engine.Stopped); err != nil {
			return
		}
		select {
		case exited <- struct{}{}:
		default:
		}
		if _, err := c.WaitFor(ctx, engine.Starting); err != nil {
			return
		}
	}
}

func shutdown(c *lifecycle.Controller, timeout time.Duration) error {
	c.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
	defer cancel()
	if _, err := c.WaitFor(ctx, engine.Stopped); err != nil {
		return fmt.Errorf("client did not stop: %w", err)
	}
	return nil
}

func newCapability(logger *slog.Logger) capability.Lock {
	if !platform.SupportsMulticast() {
		return capability.Noop{}
	}
	return capability.NewMulticast(capability.MDNSGroup, logger)
}

// startCredentials pushes a stored or prompted injector credential into the
// engine and keeps it in sync with the credential file.
func startCredentials(ctx context.Context, cfg config.Config, eng engine.Engine, noPrompt bool, logger *slog.Logger, recorder metrics.Recorder) {
	endpoint := cfg.InjectorEndpoint()
	if endpoint == "" {
		return
	}
	store := credentials.NewStore(filepath.Join(cfg.InstallDir(), constants.CredentialsFile))

	watcher := credentials.NewWatcher(store, eng, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Credential watcher stopped", logfields.Error(err))
		}
	}()

	if cfg.InjectorCredentials() != "" {
		return
	}

	var prompter credentials.Prompter
	if !noPrompt {
		prompter = terminal.NewPrompter()
	}
	auth := credentials.NewAuthenticator(store, eng, prompter, endpoint, logger, recorder)
	err := auth.Answer(ctx, auth.NewChallenge(endpoint, ""), nil)
	switch {
	case err == nil:
	case errors.Is(err, credentials.ErrNoCredential), errors.Is(err, terminal.ErrNotInteractive):
		logger.Info("No injector credential available", logfields.Endpoint(endpoint))
	default:
		logger.Warn("Failed to obtain injector credential", logfields.Endpoint(endpoint), logfields.Error(err))
	}
}

// serveMetrics serves reg at addr until the returned function is called.
func serveMetrics(addr string, reg *prom.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	logger.Info("Serving metrics", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
