package main

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-canto/config"
	"github.com/RyanBlaney/sonido-canto/logging"
)

// commandContext carries the persistent flags and the lazily loaded config
type commandContext struct {
	configPath string
	debug      bool

	cfg *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.debug {
		cfg.LogLevel = "debug"
	}
	logging.SetLevel(cfg.Level())
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "sonido-canto",
		Short:         "Sung vocal pitch tracking, note segmentation and resynthesis",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (.toml or .yaml)")
	rootCmd.PersistentFlags().BoolVar(&ctx.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
