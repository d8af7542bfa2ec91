package main

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/listing-cli/internal/config"
)

var configValidateMode string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configValidateMode != "" {
			if err := cfg.Validate(configValidateMode); err != nil {
				return err
			}
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

func printConfig(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return eris.Wrap(err, "config: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "config: flush yaml")
	}
	if configValidateMode != "" {
		fmt.Fprintf(w, "# valid for %s\n", configValidateMode)
	}
	return nil
}

func init() {
	configCmd.Flags().StringVar(&configValidateMode, "validate", "", "also validate for a mode (scrape or serve)")
	rootCmd.AddCommand(configCmd)
}
