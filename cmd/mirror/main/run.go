package main

import (
	"fmt"
	"github.com/fuad-daoud/discord-mirror/config"
	"github.com/fuad-daoud/discord-mirror/http"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/platform"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect the configured shards and serve the status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(".")
		if err != nil {
			return err
		}
		if cfg.Token == "" {
			return fmt.Errorf("TOKEN is not set")
		}
		closeLogs, err := dlog.Setup(dlog.Config{Level: cfg.LogLevel, Dir: cfg.LogDir, ArchiveCron: cfg.ArchiveCron})
		if err != nil {
			return err
		}
		defer closeLogs()

		if err := platform.Init(ctx, cfg); err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := platform.Close(closeCtx); err != nil {
				dlog.Error("Platform did not close cleanly", "err", err)
			}
		}()

		return http.Serve(ctx, http.New(platform.Cache()), cfg.HTTPAddr)
	},
}
