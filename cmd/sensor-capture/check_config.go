package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewCheckConfigCommand creates the check-config command
func NewCheckConfigCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print it with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global.ConfigPath)
			if err != nil {
				return err
			}
			if _, _, err := sessionOptions(cfg); err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# configuration OK\n%s", out)
			return nil
		},
	}
}
