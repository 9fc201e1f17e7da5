// Package sharding maps guilds onto gateway shards.
//
// The formula must match the one the gateway uses to route guilds to shard
// connections, otherwise shard-filtered views silently miss guilds:
//
//	shard_id = (guild_id >> 22) % shard_count
package sharding

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var ErrInvalidPartition = errors.New("invalid shard partition")

// ShardID returns the shard in [0, shardCount) that owns guildID. A
// shardCount of zero is treated as a single shard.
func ShardID(guildID snowflake.ID, shardCount uint32) uint32 {
	if shardCount <= 1 {
		return 0
	}
	return uint32((uint64(guildID) >> 22) % uint64(shardCount))
}

// Partition identifies one shard out of ShardCount.
type Partition struct {
	ShardID    uint32
	ShardCount uint32
}

func (p Partition) Validate() error {
	if p.ShardCount == 0 {
		return fmt.Errorf("%w: shard count must be positive", ErrInvalidPartition)
	}
	if p.ShardID >= p.ShardCount {
		return fmt.Errorf("%w: shard %d out of range for %d shards", ErrInvalidPartition, p.ShardID, p.ShardCount)
	}
	return nil
}

// Owns reports whether guildID is routed to this partition.
func (p Partition) Owns(guildID snowflake.ID) bool {
	return ShardID(guildID, p.ShardCount) == p.ShardID
}

func (p Partition) String() string {
	return fmt.Sprintf("%d/%d", p.ShardID, p.ShardCount)
}

// All returns every partition of shardCount shards.
func All(shardCount uint32) []Partition {
	if shardCount == 0 {
		shardCount = 1
	}
	partitions := make([]Partition, shardCount)
	for i := range partitions {
		partitions[i] = Partition{ShardID: uint32(i), ShardCount: shardCount}
	}
	return partitions
}
