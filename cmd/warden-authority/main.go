package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/warden/pkg/authority"
	"github.com/cuemby/warden/pkg/config"
	"github.com/cuemby/warden/pkg/log"
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
	Use:     "warden-authority",
	Short:   "Warden Authority: holds the accumulator trapdoor and mints, revokes, and verifies permissions",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("warden-authority version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("addr", "", "Listen address (overrides AUTHORITY_ADDR)")

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
		cfg.AuthorityAddr = addr
	}

	auth, err := authority.New()
	if err != nil {
		return fmt.Errorf("failed to create authority: %w", err)
	}
	srv := authority.NewServer(auth)

	errCh := make(chan error, 1)
	go func() {
		componentLogger := log.WithComponent("authority")
		componentLogger.Info().Str("addr", cfg.AuthorityAddr).Msg("listening")
		if err := srv.ListenAndServe(cfg.AuthorityAddr); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		componentLogger := log.WithComponent("authority")
		componentLogger.Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("authority server error: %w", err)
	}
	return nil
}
