package main

import (
	"encoding/json"
	"fmt"
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/mapper"
	"github.com/fuad-daoud/discord-mirror/platform"
	"github.com/fuad-daoud/discord-mirror/sharding"
	"github.com/spf13/cobra"
	"os"
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Feed a newline delimited gateway capture through the mapper and print a shard census",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shardCount, _ := cmd.Flags().GetUint32("shards")
		asJSON, _ := cmd.Flags().GetBool("json")

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		c := cache.New()
		m := mapper.New(c, mapper.WithErrorBuffer(1024))
		dropped := 0
		stop := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			for {
				select {
				case <-m.Errors():
					dropped++
				case <-stop:
					for {
						select {
						case <-m.Errors():
							dropped++
						default:
							return
						}
					}
				}
			}
		}()
		err = m.Run(cmd.Context(), mapper.NewReaderTransport(f))
		close(stop)
		<-finished
		if err != nil {
			return err
		}

		census := platform.Census(c, sharding.All(shardCount))
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(census)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-8s %8s %12s %9s %9s %7s\n", "shard", "guilds", "unavailable", "channels", "members", "users")
		for _, row := range census {
			s := row.Stats
			fmt.Fprintf(out, "%-8s %8d %12d %9d %9d %7d\n", row.Shard, s.Guilds, s.Unavailable, s.Channels, s.Members, s.Users)
		}
		fmt.Fprintf(out, "dropped %d messages\n", dropped)
		dlog.Debug("Replay finished", "file", args[0], "dropped", dropped)
		return nil
	},
}

func init() {
	replayCmd.Flags().Uint32("shards", 1, "shard count to partition the census by")
	replayCmd.Flags().Bool("json", false, "print the census as JSON")
}
