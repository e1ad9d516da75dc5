// Package main provides the command line entry point for exercising the
// Gemini Anywhere core outside the accessibility host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/logging"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version information (set at build time)
var version = "dev"

const defaultConfigPath = "~/.gemini-anywhere/config.yaml"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

func main() {
	logging.SetupBaseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "anywhere",
		Short:         "Gemini Anywhere core tools",
		Long:          "Run generations, replay field events and manage history and favorites from the terminal.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newGenerateCmd(a),
		newReplayCmd(a),
		newHistoryCmd(a),
		newFavoritesCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// load reads the configuration. A missing file at the default path is not an error.
func (a *app) load() error {
	cfg, err := config.LoadConfigOptional(a.configPath, a.configPath == defaultConfigPath)
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
	}
	if err := logging.ConfigureLogOutput(cfg); err != nil {
		return err
	}
	for _, warning := range cfg.Warnings() {
		log.Warn(warning)
	}
	a.cfg = cfg
	return nil
}

// openStore opens the history database named by the configuration.
func (a *app) openStore() (*store.DB, error) {
	path, err := a.cfg.ResolvedHistoryPath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return db, nil
}

func (a *app) history(db *store.DB) *store.History {
	return db.History(store.HistoryOptions{
		MaxItems:     a.cfg.History.MaxItems,
		DedupeWindow: a.cfg.History.DedupeWindow,
	})
}
