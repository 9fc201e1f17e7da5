package cache

import (
	"errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeFetcher struct {
	guildCalls  atomic.Int32
	memberCalls atomic.Int32
	release     chan struct{}
	err         error
}

func (f *fakeFetcher) FetchGuild(ctx context.Context, guildID snowflake.ID) (entity.Guild, error) {
	f.guildCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return entity.Guild{}, f.err
	}
	return entity.Guild{Name: "fetched", Roles: []entity.Role{{ID: 9}}}, nil
}

func (f *fakeFetcher) FetchMembers(ctx context.Context, guildID snowflake.ID) ([]entity.Member, error) {
	f.memberCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []entity.Member{newMember(1, 0, "a"), newMember(2, 0, "b")}, nil
}

func TestGetOrFetchGuild(t *testing.T) {
	t.Run("hit does not fetch", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		c := New(WithFetcher(fetcher))
		c.UpsertGuild(entity.Guild{ID: 1, Name: "stored"})

		guild, err := c.GetOrFetchGuild(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, "stored", guild.Name)
		assert.Zero(t, fetcher.guildCalls.Load())
	})
	t.Run("miss fetches and stores", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		c := New(WithFetcher(fetcher))
		c.MarkGuildUnavailable(1)

		guild, err := c.GetOrFetchGuild(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, snowflake.ID(1), guild.ID)
		assert.Equal(t, snowflake.ID(1), guild.Roles[0].GuildID)
		stored, ok := c.TryGetGuild(1)
		require.True(t, ok)
		assert.Equal(t, "fetched", stored.Name)
		assert.False(t, stored.Unavailable)
	})
	t.Run("concurrent misses share one fetch", func(t *testing.T) {
		fetcher := &fakeFetcher{release: make(chan struct{})}
		c := New(WithFetcher(fetcher))

		var (
			wg      sync.WaitGroup
			started atomic.Int32
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				started.Add(1)
				guild, err := c.GetOrFetchGuild(context.Background(), 1)
				assert.NoError(t, err)
				assert.Equal(t, "fetched", guild.Name)
			}()
		}
		for started.Load() < 10 || fetcher.guildCalls.Load() == 0 {
			runtime.Gosched()
		}
		time.Sleep(20 * time.Millisecond)
		close(fetcher.release)
		wg.Wait()

		assert.Equal(t, int32(1), fetcher.guildCalls.Load())
		assert.Equal(t, 1, c.Guilds().Len())
	})
	t.Run("fetch error", func(t *testing.T) {
		boom := errors.New("boom")
		c := New(WithFetcher(&fakeFetcher{err: boom}))

		_, err := c.GetOrFetchGuild(context.Background(), 1)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, c.Guilds().Len())
	})
	t.Run("no fetcher", func(t *testing.T) {
		_, err := New().GetOrFetchGuild(context.Background(), 1)
		assert.ErrorIs(t, err, ErrNoFetcher)
	})
}

func TestGetOrFetchMembers(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := New(WithFetcher(fetcher))
	c.UpsertGuild(entity.Guild{ID: 1})

	members, err := c.GetOrFetchMembers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, snowflake.ID(1), members[0].GuildID)

	members[0].User.Username = "caller copy"
	members, err = c.GetOrFetchMembers(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "a", members[0].User.Username)
	assert.Equal(t, int32(1), fetcher.memberCalls.Load())

	_, err = New().GetOrFetchMembers(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoFetcher)
}
