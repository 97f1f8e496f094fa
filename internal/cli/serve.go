package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelldon-ai/shelldon/pkg/gateway"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Long: `Serve the shell and the agent over HTTP: POST /execute for agent
tasks, POST /command for direct shell commands, GET /healthz, GET /metrics,
and GET /ws for a live stream of session lifecycle events. History pruning
runs on a nightly schedule while the gateway is up.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	broadcaster := gateway.NewEventBroadcaster(gateway.NewClientRegistry())

	a, err := newApp(broadcaster)
	if err != nil {
		return err
	}
	defer a.close()

	a.watchConfig()

	addr := a.cfg.Gateway.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	gwCfg := gateway.Config{
		Addr:           addr,
		Shell:          a.shell,
		MetricsHandler: a.metrics.Handler(),
		SharedSecret:   os.Getenv("SHELLDON_GATEWAY_SECRET"),
		CommandTimeout: time.Duration(a.cfg.Shell.TimeoutSeconds) * time.Second,
		EventStream:    broadcaster,
	}

	// The agent endpoint is optional: without an API key the gateway still
	// serves direct commands, health, metrics, and the event stream.
	if runner, err := a.newRunner(nil); err != nil {
		log.Warn().Err(err).Msg("Agent endpoint disabled")
	} else {
		gwCfg.Runner = runner
	}

	srv, err := gateway.NewServer(gwCfg)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	scheduler := cron.New()
	if a.history != nil && a.cfg.History.RetentionDays > 0 {
		retention := time.Duration(a.cfg.History.RetentionDays) * 24 * time.Hour
		if _, err := scheduler.AddFunc("30 3 * * *", func() {
			if _, err := a.history.Prune(retention); err != nil {
				log.Warn().Err(err).Msg("History pruning failed")
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule history pruning: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	log.Info().Str("addr", addr).Msg("Gateway ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")

	return srv.Stop()
}
