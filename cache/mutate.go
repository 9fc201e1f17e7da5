package cache

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/fuad-daoud/discord-mirror/sharding"
)

// UpsertGuild stores guild, replacing any guild with the same id. Its roles
// are pointed at it and deduplicated.
func (c *Cache) UpsertGuild(guild entity.Guild) {
	guild = guild.Normalized()
	c.guilds.Set(guild.ID, guild)
}

// RemoveGuild drops the guild together with its channels and members. Lists
// handed out earlier for it are emptied.
func (c *Cache) RemoveGuild(guildID snowflake.ID) {
	_, removed := c.guilds.TryRemove(guildID)
	detached := c.detach(func(id snowflake.ID) bool { return id == guildID })
	for _, lists := range detached {
		lists.clear()
	}
	if removed || len(detached) > 0 {
		c.log().Debug("Removed guild", "guild", guildID)
	}
}

// ReplaceGuilds swaps the whole guild set. Channels and members of guilds
// outside the new set are dropped.
func (c *Cache) ReplaceGuilds(guilds []entity.Guild) {
	items := make(map[snowflake.ID]entity.Guild, len(guilds))
	for _, guild := range guilds {
		guild = guild.Normalized()
		items[guild.ID] = guild
	}
	c.guilds.ReplaceAll(items)

	detached := c.detach(func(id snowflake.ID) bool {
		_, keep := items[id]
		return !keep
	})
	for _, lists := range detached {
		lists.clear()
	}
	c.log().Debug("Replaced guilds", "guilds", len(items), "dropped", len(detached))
}

// ReplaceShardGuilds swaps the guilds owned by p for guilds and leaves the
// guilds of every other shard alone. Owned guilds missing from guilds are
// dropped with their channels and members. Subscribers of the guild map see
// one Reset.
func (c *Cache) ReplaceShardGuilds(p sharding.Partition, guilds []entity.Guild) {
	items := make(map[snowflake.ID]entity.Guild, len(guilds))
	for _, guild := range guilds {
		guild = guild.Normalized()
		items[guild.ID] = guild
	}
	stale := func(id snowflake.ID) bool {
		_, keep := items[id]
		return !keep && p.Owns(id)
	}
	var gone []snowflake.ID
	for _, id := range c.guilds.Keys() {
		if stale(id) {
			gone = append(gone, id)
		}
	}

	c.guilds.BeginBatchUpdate()
	c.guilds.RemoveRange(gone...)
	c.guilds.AddOrUpdateRange(items)
	c.guilds.EndBatchUpdate()

	detached := c.detach(stale)
	for _, lists := range detached {
		lists.clear()
	}
	c.log().Debug("Replaced shard guilds", "shard", p.String(), "guilds", len(items), "dropped", len(gone))
}

// MarkGuildUnavailable flags the guild as unavailable and keeps everything
// stored for it. An unknown guild is stored as an unavailable placeholder.
func (c *Cache) MarkGuildUnavailable(guildID snowflake.ID) {
	placeholder := entity.Guild{ID: guildID, Unavailable: true}.Normalized()
	c.guilds.AddOrUpdate(guildID, placeholder, func(_ snowflake.ID, guild entity.Guild) entity.Guild {
		guild.Unavailable = true
		return guild
	})
}

func (c *Cache) UpsertChannel(guildID snowflake.ID, channel entity.Channel) {
	if c.guilds.ContainsKey(guildID) && channel.GuildID != guildID {
		channel = channel.WithGuildID(guildID)
	}
	c.ensureLists(guildID).channels.Upsert(func(existing entity.Channel) bool {
		return existing.ID == channel.ID
	}, channel)
}

func (c *Cache) RemoveChannel(guildID snowflake.ID, channelID snowflake.ID) {
	lists := c.listsFor(guildID)
	if lists == nil {
		return
	}
	lists.channels.RemoveWhere(func(channel entity.Channel) bool {
		return channel.ID == channelID
	})
}

// SetChannels replaces every channel of the guild.
func (c *Cache) SetChannels(guildID snowflake.ID, channels []entity.Channel) {
	known := c.guilds.ContainsKey(guildID)
	fixed := make([]entity.Channel, 0, len(channels))
	for _, channel := range lastByID(channels, channelKey) {
		if known && channel.GuildID != guildID {
			channel = channel.WithGuildID(guildID)
		}
		fixed = append(fixed, channel)
	}
	c.ensureLists(guildID).channels.ReplaceAll(fixed)
}

func (c *Cache) UpsertMember(guildID snowflake.ID, member entity.Member) {
	c.upsertMember(c.guilds.ContainsKey(guildID), c.ensureLists(guildID), guildID, member)
}

// UpsertMembers upserts every member inside one batch of the guild's member
// list, so subscribers see a single Reset.
func (c *Cache) UpsertMembers(guildID snowflake.ID, members []entity.Member) {
	if len(members) == 0 {
		return
	}
	known := c.guilds.ContainsKey(guildID)
	lists := c.ensureLists(guildID)
	lists.members.BeginBatchUpdate()
	defer lists.members.EndBatchUpdate()
	for _, member := range members {
		c.upsertMember(known, lists, guildID, member)
	}
}

func (c *Cache) upsertMember(known bool, lists *guildLists, guildID snowflake.ID, member entity.Member) {
	if known && member.GuildID != guildID {
		member = member.WithGuildID(guildID)
	}
	lists.members.Upsert(func(existing entity.Member) bool {
		return existing.User.ID == member.User.ID
	}, member)
}

func (c *Cache) RemoveMember(guildID snowflake.ID, userID snowflake.ID) {
	lists := c.listsFor(guildID)
	if lists == nil {
		return
	}
	lists.members.RemoveWhere(func(member entity.Member) bool {
		return member.User.ID == userID
	})
}

// SetMembers replaces every member of the guild.
func (c *Cache) SetMembers(guildID snowflake.ID, members []entity.Member) {
	known := c.guilds.ContainsKey(guildID)
	fixed := make([]entity.Member, 0, len(members))
	for _, member := range lastByID(members, memberKey) {
		if known && member.GuildID != guildID {
			member = member.WithGuildID(guildID)
		}
		fixed = append(fixed, member)
	}
	c.ensureLists(guildID).members.ReplaceAll(fixed)
}

// UpsertRole replaces the role with the same id in the guild, or appends it.
// Nothing happens when the guild is unknown.
func (c *Cache) UpsertRole(guildID snowflake.ID, role entity.Role) {
	ok := c.guilds.TryUpdate(guildID, func(guild entity.Guild) (entity.Guild, bool) {
		return guild.WithRole(role), true
	})
	if !ok {
		c.log().Debug("Ignored role for unknown guild", "guild", guildID, "role", role.ID)
	}
}

func (c *Cache) RemoveRole(guildID snowflake.ID, roleID snowflake.ID) {
	c.guilds.TryUpdate(guildID, func(guild entity.Guild) (entity.Guild, bool) {
		return guild.WithoutRole(roleID)
	})
}

// SetEmojis replaces the emojis of a known guild.
func (c *Cache) SetEmojis(guildID snowflake.ID, emojis []entity.Emoji) {
	ok := c.guilds.TryUpdate(guildID, func(guild entity.Guild) (entity.Guild, bool) {
		return guild.WithEmojis(emojis), true
	})
	if !ok {
		c.log().Debug("Ignored emojis for unknown guild", "guild", guildID)
	}
}

func channelKey(channel entity.Channel) snowflake.ID { return channel.ID }

func memberKey(member entity.Member) snowflake.ID { return member.User.ID }
