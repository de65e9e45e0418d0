// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ik5/audtrack/internal/config"
	"github.com/ik5/audtrack/internal/logger"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "audtrack",
	Short:         "Multi-track audio player and recorder",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			cfg.Audio.Backend = backendFlag
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		return logger.Init(cfg.Log)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var backendFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "audtrack.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "device backend (portaudio, oto, null)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
