package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "verdant",
		Short:         "Verdant: plant identification, diagnosis and care chat backed by AI providers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when omitted)")

	root.AddCommand(
		newServeCmd(&configPath),
		newIdentifyCmd(&configPath),
		newDiagnoseCmd(&configPath),
		newChatCmd(&configPath),
		newMCPCmd(&configPath),
		newCacheCmd(&configPath),
		newUsageCmd(&configPath),
		newAttemptsCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
