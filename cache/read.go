package cache

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/fuad-daoud/discord-mirror/observable"
	"github.com/fuad-daoud/discord-mirror/sharding"
)

func (c *Cache) TryGetGuild(guildID snowflake.ID) (entity.Guild, bool) {
	return c.guilds.TryGetValue(guildID)
}

// TryGetUser finds the user through any guild it is a member of, including
// guilds that are not known yet.
func (c *Cache) TryGetUser(userID snowflake.ID) (entity.User, bool) {
	c.mu.RLock()
	lists := make([]*guildLists, 0, len(c.lists))
	for _, l := range c.lists {
		lists = append(lists, l)
	}
	c.mu.RUnlock()

	for _, l := range lists {
		member, ok := l.members.FirstOrDefault(func(member entity.Member) bool {
			return member.User.ID == userID
		})
		if ok {
			return member.User, true
		}
	}
	return entity.User{}, false
}

// Guilds returns the live guild map.
func (c *Cache) Guilds() *observable.Map[snowflake.ID, entity.Guild] {
	return c.guilds
}

// Channels returns the live channel list of a known guild, nil otherwise.
func (c *Cache) Channels(guildID snowflake.ID) *observable.List[entity.Channel] {
	if !c.guilds.ContainsKey(guildID) {
		return nil
	}
	return c.ensureLists(guildID).channels
}

// Members returns the live member list of a known guild, nil otherwise.
func (c *Cache) Members(guildID snowflake.ID) *observable.List[entity.Member] {
	if !c.guilds.ContainsKey(guildID) {
		return nil
	}
	return c.ensureLists(guildID).members
}

// AllChannels is a flattened live view over the channels of every known guild.
func (c *Cache) AllChannels() View[entity.Channel] {
	return View[entity.Channel]{lists: func() []*observable.List[entity.Channel] {
		var out []*observable.List[entity.Channel]
		c.eachLists(nil, func(_ entity.Guild, l *guildLists) {
			out = append(out, l.channels)
		})
		return out
	}}
}

// AllMembers is a flattened live view over the members of every known guild.
func (c *Cache) AllMembers() View[entity.Member] {
	return View[entity.Member]{lists: func() []*observable.List[entity.Member] {
		var out []*observable.List[entity.Member]
		c.eachLists(nil, func(_ entity.Guild, l *guildLists) {
			out = append(out, l.members)
		})
		return out
	}}
}

// eachLists calls fn for every known guild accepted by include that has
// lists, in guild id order.
func (c *Cache) eachLists(include func(snowflake.ID) bool, fn func(entity.Guild, *guildLists)) {
	for _, guild := range c.knownGuilds(include) {
		if lists := c.listsFor(guild.ID); lists != nil {
			fn(guild, lists)
		}
	}
}

func (c *Cache) SnapshotGuilds() []entity.Guild {
	return c.knownGuilds(nil)
}

func (c *Cache) SnapshotGuildsForShard(shardID, shardCount uint32) []entity.Guild {
	return c.knownGuilds(owner(shardID, shardCount))
}

func (c *Cache) SnapshotChannels() []entity.Channel {
	return c.snapshotChannels(nil)
}

func (c *Cache) SnapshotChannelsForShard(shardID, shardCount uint32) []entity.Channel {
	return c.snapshotChannels(owner(shardID, shardCount))
}

func (c *Cache) snapshotChannels(include func(snowflake.ID) bool) []entity.Channel {
	channels := []entity.Channel{}
	c.eachLists(include, func(_ entity.Guild, l *guildLists) {
		channels = append(channels, l.channels.ToSlice()...)
	})
	return channels
}

func (c *Cache) SnapshotMembers() []entity.Member {
	return c.snapshotMembers(nil)
}

func (c *Cache) SnapshotMembersForShard(shardID, shardCount uint32) []entity.Member {
	return c.snapshotMembers(owner(shardID, shardCount))
}

func (c *Cache) snapshotMembers(include func(snowflake.ID) bool) []entity.Member {
	members := []entity.Member{}
	c.eachLists(include, func(_ entity.Guild, l *guildLists) {
		members = append(members, l.members.ToSlice()...)
	})
	return members
}

func (c *Cache) SnapshotRoles() []entity.Role {
	return c.snapshotRoles(nil)
}

func (c *Cache) SnapshotRolesForShard(shardID, shardCount uint32) []entity.Role {
	return c.snapshotRoles(owner(shardID, shardCount))
}

func (c *Cache) snapshotRoles(include func(snowflake.ID) bool) []entity.Role {
	roles := []entity.Role{}
	for _, guild := range c.knownGuilds(include) {
		roles = append(roles, guild.Roles...)
	}
	return roles
}

// SnapshotUsers returns every member's user once, in first-seen order, with
// GuildIDs listing the known guilds the user is a member of.
func (c *Cache) SnapshotUsers() []entity.User {
	return c.snapshotUsers(nil)
}

// SnapshotUsersForShard is SnapshotUsers restricted to the shard's guilds.
// A user in guilds on several shards shows up in each of them.
func (c *Cache) SnapshotUsersForShard(shardID, shardCount uint32) []entity.User {
	return c.snapshotUsers(owner(shardID, shardCount))
}

func (c *Cache) snapshotUsers(include func(snowflake.ID) bool) []entity.User {
	index := make(map[snowflake.ID]int)
	users := []entity.User{}
	c.eachLists(include, func(guild entity.Guild, l *guildLists) {
		l.members.Each(func(_ int, member entity.Member) bool {
			i, ok := index[member.User.ID]
			if !ok {
				user := member.User
				user.GuildIDs = nil
				i = len(users)
				index[user.ID] = i
				users = append(users, user)
			}
			users[i].GuildIDs = append(users[i].GuildIDs, guild.ID)
			return true
		})
	})
	return users
}

// Stats counts what is stored, over known guilds only.
type Stats struct {
	Guilds      int `json:"guilds"`
	Unavailable int `json:"unavailable"`
	Channels    int `json:"channels"`
	Members     int `json:"members"`
	Roles       int `json:"roles"`
	Users       int `json:"users"`
}

func (c *Cache) Stats() Stats {
	return c.stats(nil)
}

func (c *Cache) StatsForShard(shardID, shardCount uint32) Stats {
	return c.stats(owner(shardID, shardCount))
}

func (c *Cache) stats(include func(snowflake.ID) bool) Stats {
	var stats Stats
	users := make(map[snowflake.ID]struct{})
	for _, guild := range c.knownGuilds(include) {
		stats.Guilds++
		stats.Roles += len(guild.Roles)
		if guild.Unavailable {
			stats.Unavailable++
		}
		lists := c.listsFor(guild.ID)
		if lists == nil {
			continue
		}
		stats.Channels += lists.channels.Len()
		lists.members.Each(func(_ int, member entity.Member) bool {
			stats.Members++
			users[member.User.ID] = struct{}{}
			return true
		})
	}
	stats.Users = len(users)
	return stats
}

func owner(shardID, shardCount uint32) func(snowflake.ID) bool {
	return sharding.Partition{ShardID: shardID, ShardCount: shardCount}.Owns
}
