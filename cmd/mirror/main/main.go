package main

import (
	"fmt"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/spf13/cobra"
	"os"
)

var rootCmd = &cobra.Command{
	Use:           "mirror",
	Short:         "Shard-aware mirror of Discord guild state",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd, replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		dlog.Error("Command failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
