package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/warden/pkg/config"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/synchronizer"
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
	Use:     "warden-synchronizer",
	Short:   "Warden Synchronizer: client entry point; drives the windowed phase protocol",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("warden-synchronizer version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("addr", "", "Listen address (overrides SYNCHRONIZER_ADDR)")
	rootCmd.Flags().String("authority-addr", "", "Authority address (overrides AUTHORITY_ADDR)")
	rootCmd.Flags().String("worker-addr", "", "Worker address (overrides WORKER_ADDR)")
	rootCmd.Flags().Duration("window", 0, "Update window interval (overrides UPDATE_WINDOW_MILLIS)")

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
		cfg.SynchronizerAddr = addr
	}
	if addr, _ := cmd.Flags().GetString("authority-addr"); addr != "" {
		cfg.AuthorityAddr = addr
	}
	if addr, _ := cmd.Flags().GetString("worker-addr"); addr != "" {
		cfg.WorkerAddr = addr
	}
	if window, _ := cmd.Flags().GetDuration("window"); window > 0 {
		cfg.UpdateWindow = window
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := synchronizer.New(ctx, cfg.AuthorityAddr, cfg.WorkerAddr)
	if err != nil {
		return fmt.Errorf("failed to create synchronizer: %w", err)
	}
	srv := synchronizer.NewServer(s)

	errCh := make(chan error, 2)
	go func() {
		componentLogger := log.WithComponent("synchronizer")
		componentLogger.Info().Str("addr", cfg.SynchronizerAddr).Msg("listening")
		if err := srv.ListenAndServe(cfg.SynchronizerAddr); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := s.RunWindows(ctx, cfg.UpdateWindow); err != nil {
			errCh <- fmt.Errorf("windowing loop: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		componentLogger := log.WithComponent("synchronizer")
		componentLogger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}
	return nil
}
