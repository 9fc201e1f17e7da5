package cache

import (
	"fmt"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"sync"
	"testing"
)

// populate stores guilds spread over shards, each with channels, members
// and roles whose ids encode the guild.
func populate(c *Cache, guilds int) {
	for g := 1; g <= guilds; g++ {
		guildID := snowflake.ID(uint64(g)<<22 | uint64(g))
		c.UpsertGuild(entity.Guild{
			ID:    guildID,
			Name:  fmt.Sprintf("guild-%d", g),
			Roles: []entity.Role{{ID: snowflake.ID(g*1000 + 1)}, {ID: snowflake.ID(g*1000 + 2)}},
		})
		c.SetChannels(guildID, []entity.Channel{
			{ID: snowflake.ID(g*1000 + 3), Name: "general"},
			{ID: snowflake.ID(g*1000 + 4), Name: "random"},
		})
		c.SetMembers(guildID, []entity.Member{
			newMember(snowflake.ID(g), 0, fmt.Sprintf("user-%d", g)),
			newMember(snowflake.ID(g+1), 0, fmt.Sprintf("user-%d", g+1)),
		})
	}
}

func TestShardSnapshotsPartition(t *testing.T) {
	c := New()
	populate(c, 40)

	channelIDs := func(channels []entity.Channel) []snowflake.ID {
		ids := make([]snowflake.ID, 0, len(channels))
		for _, channel := range channels {
			ids = append(ids, channel.ID)
		}
		return ids
	}
	memberKeys := func(members []entity.Member) []string {
		keys := make([]string, 0, len(members))
		for _, member := range members {
			keys = append(keys, fmt.Sprintf("%d/%d", member.GuildID, member.User.ID))
		}
		return keys
	}
	roleIDs := func(roles []entity.Role) []snowflake.ID {
		ids := make([]snowflake.ID, 0, len(roles))
		for _, role := range roles {
			ids = append(ids, role.ID)
		}
		return ids
	}

	for _, shardCount := range []uint32{1, 2, 3, 5, 16} {
		t.Run(fmt.Sprintf("%d shards", shardCount), func(t *testing.T) {
			var (
				guilds   []entity.Guild
				channels []entity.Channel
				members  []entity.Member
				roles    []entity.Role
			)
			for shardID := uint32(0); shardID < shardCount; shardID++ {
				guilds = append(guilds, c.SnapshotGuildsForShard(shardID, shardCount)...)
				channels = append(channels, c.SnapshotChannelsForShard(shardID, shardCount)...)
				members = append(members, c.SnapshotMembersForShard(shardID, shardCount)...)
				roles = append(roles, c.SnapshotRolesForShard(shardID, shardCount)...)
			}

			assert.ElementsMatch(t, c.SnapshotGuilds(), guilds)
			assert.ElementsMatch(t, channelIDs(c.SnapshotChannels()), channelIDs(channels))
			assert.ElementsMatch(t, memberKeys(c.SnapshotMembers()), memberKeys(members))
			assert.ElementsMatch(t, roleIDs(c.SnapshotRoles()), roleIDs(roles))
			assert.Len(t, channels, 80)
		})
	}
}

func TestSnapshotGuildsOrdered(t *testing.T) {
	c := New()
	for _, id := range []snowflake.ID{30, 10, 20} {
		c.UpsertGuild(entity.Guild{ID: id})
	}

	guilds := c.SnapshotGuilds()

	require.Len(t, guilds, 3)
	assert.Equal(t, []snowflake.ID{10, 20, 30}, []snowflake.ID{guilds[0].ID, guilds[1].ID, guilds[2].ID})
}

func TestSnapshotUsers(t *testing.T) {
	c := New()
	c.UpsertGuild(entity.Guild{ID: 1})
	c.UpsertGuild(entity.Guild{ID: 2})
	c.SetMembers(1, []entity.Member{newMember(10, 1, "a"), newMember(11, 1, "b")})
	c.SetMembers(2, []entity.Member{newMember(11, 2, "b")})
	c.UpsertMember(3, newMember(10, 3, "a"))

	users := c.SnapshotUsers()

	require.Len(t, users, 2)
	assert.Equal(t, snowflake.ID(10), users[0].ID)
	assert.Equal(t, []snowflake.ID{1}, users[0].GuildIDs, "guild 3 is not known")
	assert.Equal(t, []snowflake.ID{1, 2}, users[1].GuildIDs)

	c.RemoveMember(1, 11)
	users = c.SnapshotUsers()
	require.Len(t, users, 2)
	assert.Equal(t, []snowflake.ID{2}, users[1].GuildIDs, "guild sets are computed on every call")

	stored := c.Members(2).At(0).User
	assert.Nil(t, stored.GuildIDs, "stored users are never written to")
}

func TestStats(t *testing.T) {
	c := New()
	populate(c, 4)
	c.MarkGuildUnavailable(snowflake.ID(1<<22 | 1))

	stats := c.Stats()

	assert.Equal(t, Stats{Guilds: 4, Unavailable: 1, Channels: 8, Members: 8, Roles: 8, Users: 5}, stats)

	var sum Stats
	for shardID := uint32(0); shardID < 3; shardID++ {
		s := c.StatsForShard(shardID, 3)
		sum.Guilds += s.Guilds
		sum.Channels += s.Channels
		sum.Members += s.Members
		sum.Roles += s.Roles
	}
	assert.Equal(t, Stats{Guilds: 4, Channels: 8, Members: 8, Roles: 8}, sum)
}

func TestViews(t *testing.T) {
	c := New()
	channels := c.AllChannels()
	members := c.AllMembers()
	assert.Equal(t, 0, channels.Len())

	populate(c, 3)
	assert.Equal(t, 6, channels.Len(), "views follow guilds added later")
	assert.Len(t, members.ToSlice(), 6)

	member, ok := members.Find(func(member entity.Member) bool { return member.User.ID == 4 })
	require.True(t, ok)
	assert.Equal(t, "user-4", member.User.Username)

	seen := 0
	channels.Each(func(entity.Channel) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)

	c.RemoveGuild(snowflake.ID(1<<22 | 1))
	assert.Equal(t, 4, channels.Len())
}

func TestConcurrentMutationAndSnapshots(t *testing.T) {
	c := New()
	const (
		writers = 8
		rounds  = 300
	)
	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
	)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < rounds; i++ {
				guildID := snowflake.ID(uint64(r.Intn(6)+1) << 22)
				channelID := snowflake.ID(r.Intn(20) + 1)
				switch r.Intn(7) {
				case 0:
					c.UpsertGuild(entity.Guild{ID: guildID, Name: "guild", Roles: []entity.Role{{ID: channelID, Name: "role"}}})
				case 1:
					c.RemoveGuild(guildID)
				case 2:
					c.UpsertChannel(guildID, entity.Channel{ID: channelID, Name: channelName(channelID)})
				case 3:
					c.RemoveChannel(guildID, channelID)
				case 4:
					c.UpsertMember(guildID, newMember(channelID, guildID, "member"))
				case 5:
					c.SetChannels(guildID, []entity.Channel{{ID: channelID, Name: channelName(channelID)}})
				case 6:
					c.UpsertRole(guildID, entity.Role{ID: channelID, Name: "role"})
				}
			}
		}(w)
	}

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, channel := range c.SnapshotChannelsForShard(0, 2) {
					if channel.Name != channelName(channel.ID) {
						t.Errorf("torn channel %+v", channel)
					}
				}
				for _, role := range c.SnapshotRoles() {
					if role.Name != "role" {
						t.Errorf("torn role %+v", role)
					}
				}
				for _, user := range c.SnapshotUsers() {
					if user.Username != "member" || len(user.GuildIDs) == 0 {
						t.Errorf("torn user %+v", user)
					}
				}
				_ = c.Stats()
				_, _ = c.TryGetUser(3)
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	for _, guild := range c.SnapshotGuilds() {
		for _, channel := range c.Channels(guild.ID).ToSlice() {
			assert.Equal(t, channelName(channel.ID), channel.Name)
		}
	}
}

func channelName(id snowflake.ID) string {
	return fmt.Sprintf("channel-%d", id)
}

func TestSnapshotsShareNoMemoryWithStoredEntities(t *testing.T) {
	c := New()
	c.UpsertGuild(entity.Guild{
		ID:     1,
		Roles:  []entity.Role{{ID: 2, Name: "mod"}},
		Emojis: []entity.Emoji{{ID: 3, Name: "go"}},
	})
	member := newMember(5, 1, "a")
	member.RoleIDs = []snowflake.ID{2}
	c.SetMembers(1, []entity.Member{member})
	member.RoleIDs[0] = 77

	guilds := c.SnapshotGuilds()
	guilds[0].Roles[0].Name = "changed"
	guilds[0].Emojis[0].Name = "changed"
	c.SnapshotMembers()[0].RoleIDs[0] = 99
	c.AllMembers().ToSlice()[0].RoleIDs[0] = 98
	guild, _ := c.TryGetGuild(1)
	guild.Roles[0].Name = "changed again"

	stored, ok := c.TryGetGuild(1)
	require.True(t, ok)
	assert.Equal(t, "mod", stored.Roles[0].Name)
	assert.Equal(t, "go", stored.Emojis[0].Name)
	assert.Equal(t, []snowflake.ID{2}, c.Members(1).At(0).RoleIDs)
}
