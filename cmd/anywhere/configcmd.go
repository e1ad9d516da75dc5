package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/barathvasan-dev/Gemini-Anywhere/internal/config"
	"github.com/barathvasan-dev/Gemini-Anywhere/internal/misc"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printConfig(cmd.OutOrStdout(), a.cfg)
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the configuration file on change and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			w, err := config.NewWatcher(a.configPath, func(cfg *config.Config) {
				if err := printConfig(out, cfg); err != nil {
					log.Warnf("config watch: %v", err)
				}
			})
			if err != nil {
				return err
			}
			log.WithField("path", a.configPath).Info("watching configuration")
			if err := w.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd, watchCmd)
	return configCmd
}

// printConfig writes cfg as YAML. API keys are replaced with masked values.
func printConfig(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	masked.Gemini.APIKey = misc.MaskSecret(cfg.Gemini.APIKey)
	masked.Gemini.APIKeys = make([]string, len(cfg.Gemini.APIKeys))
	for i, key := range cfg.Gemini.APIKeys {
		masked.Gemini.APIKeys[i] = misc.MaskSecret(key)
	}
	masked.Voice.Deepgram.APIKey = misc.MaskSecret(cfg.Voice.Deepgram.APIKey)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = w.Write(append([]byte("---\n"), data...))
	return err
}
