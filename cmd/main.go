package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/rfqmatch/internal/config"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	return newRootCmd().Execute()
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	fixtures   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "rfqmatch",
		Short: "Supplier match and explanation engine for RFQs",
		Long: `rfqmatch ranks suppliers for a buyer's RFQ, records every proposal in a
match ledger and explains each score.

Configuration is read from defaults, then the YAML file named by --config
(or RFQMATCH_CONFIG), then RFQMATCH_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if flags.configPath != "" {
				if err := os.Setenv(config.EnvFile, flags.configPath); err != nil {
					return fmt.Errorf("setting %s: %w", config.EnvFile, err)
				}
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.fixtures, "fixtures", "", "YAML file of RFQs, suppliers and quotes to load at startup")

	root.AddCommand(
		newServeCmd(flags),
		newMatchCmd(flags),
		newSubmitCmd(flags),
		newVerifyCmd(flags),
		newSimilarityCmd(),
		newStatsCmd(flags),
		newMigrateCmd(flags),
	)
	return root
}
