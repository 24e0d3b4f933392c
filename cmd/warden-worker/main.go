package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/warden/pkg/config"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/worker"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "warden-worker",
	Short:   "Warden Worker: mirrors the Authority's accumulator and maintains witnesses without the trapdoor",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("warden-worker version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("addr", "", "Listen address (overrides WORKER_ADDR)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.WorkerAddr = addr
	}

	w := worker.New()
	srv := worker.NewServer(w)

	errCh := make(chan error, 1)
	go func() {
		componentLogger := log.WithComponent("worker")
		componentLogger.Info().Str("addr", cfg.WorkerAddr).Msg("listening")
		if err := srv.ListenAndServe(cfg.WorkerAddr); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		componentLogger := log.WithComponent("worker")
		componentLogger.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("worker server error: %w", err)
	}
	return nil
}
