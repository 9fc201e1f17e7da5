package platform

import (
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/sharding"
)

type ShardCensus struct {
	Shard string      `json:"shard"`
	Stats cache.Stats `json:"stats"`
}

// Census counts what c holds for each partition.
func Census(c *cache.Cache, partitions []sharding.Partition) []ShardCensus {
	out := make([]ShardCensus, 0, len(partitions))
	for _, p := range partitions {
		out = append(out, ShardCensus{Shard: p.String(), Stats: c.StatsForShard(p.ShardID, p.ShardCount)})
	}
	return out
}

func LogCensus(c *cache.Cache, partitions []sharding.Partition) {
	for _, row := range Census(c, partitions) {
		dlog.Info("Shard census",
			"shard", row.Shard,
			"guilds", row.Stats.Guilds,
			"unavailable", row.Stats.Unavailable,
			"channels", row.Stats.Channels,
			"members", row.Stats.Members,
			"users", row.Stats.Users,
		)
	}
}
