package platform

import (
	"errors"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/fuad-daoud/discord-mirror/config"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/fuad-daoud/discord-mirror/mapper"
	"github.com/fuad-daoud/discord-mirror/sharding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
	"sync"
	"testing"
	"time"
)

type fakeGateway struct {
	mu     sync.Mutex
	sinks  map[uint32]func(mapper.Message)
	closed int
	fail   uint32
}

func (f *fakeGateway) connect(_ context.Context, p sharding.Partition, sink func(mapper.Message)) (func(context.Context), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != 0 && p.ShardID == f.fail {
		return nil, errors.New("refused")
	}
	if f.sinks == nil {
		f.sinks = make(map[uint32]func(mapper.Message))
	}
	f.sinks[p.ShardID] = sink
	return func(context.Context) {
		f.mu.Lock()
		f.closed++
		f.mu.Unlock()
	}, nil
}

func (f *fakeGateway) send(shard uint32, kind gateway.EventType, data string) {
	f.mu.Lock()
	sink := f.sinks[shard]
	f.mu.Unlock()
	sink(mapper.Message{Type: kind, Data: []byte(data)})
}

type noFetch struct{}

func (noFetch) FetchGuild(context.Context, snowflake.ID) (entity.Guild, error) {
	return entity.Guild{}, cache.ErrNoFetcher
}

func (noFetch) FetchMembers(context.Context, snowflake.ID) ([]entity.Member, error) {
	return nil, cache.ErrNoFetcher
}

func testConfig() config.Config {
	return config.Config{ShardCount: 2, CensusCron: "@every 1h", ErrorBuffer: 4}
}

func TestLifecycle(t *testing.T) {
	fake := &fakeGateway{}
	ctx := context.Background()

	assert.Panics(t, func() { Cache() })
	assert.ErrorIs(t, Close(ctx), ErrNotInitialized)

	require.NoError(t, Init(ctx, testConfig(), WithConnector(fake.connect), WithFetcher(noFetch{})))
	assert.Error(t, Init(ctx, testConfig(), WithConnector(fake.connect), WithFetcher(noFetch{})))
	assert.Len(t, fake.sinks, 2)

	fake.send(1, gateway.EventTypeGuildCreate, `{"id":"4194304","name":"one","roles":[],"channels":[{"id":"9","type":0}]}`)
	fake.send(0, gateway.EventTypeGuildCreate, `{"id":"8388608","name":"two","roles":[]}`)

	c := Cache()
	assert.Eventually(t, func() bool {
		return c.Stats().Guilds == 2
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return c.Stats().Channels == 1
	}, time.Second, 5*time.Millisecond)

	census := Census(c, sharding.All(2))
	require.Len(t, census, 2)
	assert.Equal(t, "0/2", census[0].Shard)
	assert.Equal(t, 1, census[0].Stats.Guilds)
	assert.Equal(t, 1, census[1].Stats.Channels)

	require.NoError(t, Close(ctx))
	assert.Equal(t, 2, fake.closed)
	assert.Panics(t, func() { Cache() })
}

func TestInitFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.ShardIDs = []uint32{5}
		assert.ErrorIs(t, Init(ctx, cfg, WithConnector((&fakeGateway{}).connect), WithFetcher(noFetch{})), sharding.ErrInvalidPartition)
	})
	t.Run("shard refuses", func(t *testing.T) {
		fake := &fakeGateway{fail: 1}
		err := Init(ctx, testConfig(), WithConnector(fake.connect), WithFetcher(noFetch{}))
		assert.ErrorContains(t, err, "connect shard 1/2")
		assert.Equal(t, 1, fake.closed)
		assert.Panics(t, func() { Cache() })
	})
	t.Run("bad census schedule", func(t *testing.T) {
		cfg := testConfig()
		cfg.CensusCron = "whenever"
		fake := &fakeGateway{}
		assert.ErrorContains(t, Init(ctx, cfg, WithConnector(fake.connect), WithFetcher(noFetch{})), "schedule census")
		assert.Equal(t, 2, fake.closed)
	})
}
