package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCmd builds the command tree around its own viper instance, so
// flags, FSEARCH_* variables and the config file resolve the same way in
// every subcommand.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "fsearch",
		Short:         "Compose case-insensitive searches and edit distances over record sets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./fsearch.yaml if present)")
	root.PersistentFlags().String("records", "", "records file or directory (json, ndjson, yaml)")
	root.PersistentFlags().String("queries", "", "query definition file or directory")
	root.PersistentFlags().Int("workers", 4, "concurrent queries in a batch")
	_ = v.BindPFlag("records", root.PersistentFlags().Lookup("records"))
	_ = v.BindPFlag("queries", root.PersistentFlags().Lookup("queries"))
	_ = v.BindPFlag("workers", root.PersistentFlags().Lookup("workers"))

	root.AddCommand(newQueryCmd(v), newDistanceCmd(), newServeCmd(v))
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("FSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if _, err := os.Stat("fsearch.yaml"); err != nil {
			return nil
		}
		v.SetConfigFile("fsearch.yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
