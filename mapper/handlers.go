package mapper

import (
	"github.com/bitly/go-simplejson"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
)

// handler applies one payload to the store and returns the event to emit.
// A nil event with a nil error means the message was skipped.
type handler func(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error)

var handlers = map[gateway.EventType]handler{
	gateway.EventTypeReady:             handleReady,
	gateway.EventTypeGuildCreate:       handleGuildCreate,
	gateway.EventTypeGuildUpdate:       handleGuildUpdate,
	gateway.EventTypeGuildDelete:       handleGuildDelete,
	gateway.EventTypeChannelCreate:     handleChannelUpsert(false, true),
	gateway.EventTypeChannelUpdate:     handleChannelUpsert(false, false),
	gateway.EventTypeChannelDelete:     handleChannelDelete(false),
	gateway.EventTypeThreadCreate:      handleChannelUpsert(true, true),
	gateway.EventTypeThreadUpdate:      handleChannelUpsert(true, false),
	gateway.EventTypeThreadDelete:      handleChannelDelete(true),
	gateway.EventTypeGuildMemberAdd:    handleMemberUpsert(true),
	gateway.EventTypeGuildMemberUpdate: handleMemberUpsert(false),
	gateway.EventTypeGuildMemberRemove: handleMemberRemove,
	gateway.EventTypeGuildMembersChunk: handleMembersChunk,
	gateway.EventTypeGuildRoleCreate:   handleRoleUpsert(true),
	gateway.EventTypeGuildRoleUpdate:   handleRoleUpsert(false),
	gateway.EventTypeGuildRoleDelete:   handleRoleDelete,
	gateway.EventTypeGuildEmojisUpdate: handleEmojisUpdate,
	gateway.EventTypeMessageCreate:     handleMessageCreate,
}

func handleReady(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guilds, err := decodeArray[entity.Guild](data, "guilds")
	if err != nil {
		return nil, err
	}
	for i := range guilds {
		if _, err := requiredID(data.Get("guilds").GetIndex(i), "id"); err != nil {
			return nil, err
		}
		guilds[i].Unavailable = true
	}
	var user entity.User
	if v, ok := present(data, "user"); ok {
		if err := decodeObject(v, &user); err != nil {
			return nil, err
		}
	}
	if m.shard != nil {
		m.store.ReplaceShardGuilds(*m.shard, guilds)
	} else {
		m.store.ReplaceGuilds(guilds)
	}
	return &Ready{
		GenericEvent: header,
		SessionID:    data.Get("session_id").MustString(),
		User:         user,
		Guilds:       guilds,
	}, nil
}

func handleGuildCreate(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guildID, err := requiredID(data, "id")
	if err != nil {
		return nil, err
	}
	m.checkShard(header.EventType, guildID)
	if data.Get("unavailable").MustBool() {
		m.store.MarkGuildUnavailable(guildID)
		return &GuildCreate{
			GenericEvent: header,
			Guild:        entity.Guild{ID: guildID, Unavailable: true}.Normalized(),
			Channels:     []entity.Channel{},
			Members:      []entity.Member{},
		}, nil
	}

	guild, err := parseGuild(data)
	if err != nil {
		return nil, err
	}
	channels, err := decodeArray[entity.Channel](data, "channels")
	if err != nil {
		return nil, err
	}
	threads, err := decodeArray[entity.Channel](data, "threads")
	if err != nil {
		return nil, err
	}
	channels = append(channels, threads...)
	for i := range channels {
		channels[i] = channels[i].WithGuildID(guildID)
	}
	members, err := decodeArray[entity.Member](data, "members")
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i] = normalizeMember(members[i]).WithGuildID(guildID)
	}

	m.store.UpsertGuild(guild)
	m.store.SetChannels(guildID, channels)
	m.store.SetMembers(guildID, members)
	return &GuildCreate{GenericEvent: header, Guild: guild, Channels: channels, Members: members}, nil
}

func handleGuildUpdate(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guild, err := parseGuild(data)
	if err != nil {
		return nil, err
	}
	m.checkShard(header.EventType, guild.ID)
	if _, ok := present(data, "emojis"); !ok {
		if existing, ok := m.store.TryGetGuild(guild.ID); ok {
			guild = guild.WithEmojis(existing.Emojis)
		}
	}
	m.store.UpsertGuild(guild)
	return &GuildUpdate{GenericEvent: header, Guild: guild}, nil
}

func handleGuildDelete(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guildID, err := requiredID(data, "id")
	if err != nil {
		return nil, err
	}
	unavailable := data.Get("unavailable").MustBool()
	if unavailable {
		m.store.MarkGuildUnavailable(guildID)
	} else {
		m.store.RemoveGuild(guildID)
	}
	return &GuildDelete{GenericEvent: header, GuildID: guildID, Unavailable: unavailable}, nil
}

func handleChannelUpsert(thread, create bool) handler {
	return func(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
		guildID, channel, ok, err := parseChannel(data)
		if !ok || err != nil {
			return nil, err
		}
		m.checkShard(header.EventType, guildID)
		m.store.UpsertChannel(guildID, channel)
		if create {
			return &ChannelCreate{GenericEvent: header, Channel: channel, Thread: thread}, nil
		}
		return &ChannelUpdate{GenericEvent: header, Channel: channel, Thread: thread}, nil
	}
}

func handleChannelDelete(thread bool) handler {
	return func(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
		guildID, channel, ok, err := parseChannel(data)
		if !ok || err != nil {
			return nil, err
		}
		m.store.RemoveChannel(guildID, channel.ID)
		return &ChannelDelete{GenericEvent: header, Channel: channel, Thread: thread}, nil
	}
}

func handleMemberUpsert(add bool) handler {
	return func(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
		guildID, ok, err := optionalID(data, "guild_id")
		if !ok || err != nil {
			return nil, err
		}
		member, err := parseMember(data)
		if err != nil {
			return nil, err
		}
		member = member.WithGuildID(guildID)
		m.checkShard(header.EventType, guildID)
		m.store.UpsertMember(guildID, member)
		if add {
			return &MemberAdd{GenericEvent: header, Member: member}, nil
		}
		return &MemberUpdate{GenericEvent: header, Member: member}, nil
	}
}

func handleMemberRemove(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guildID, ok, err := optionalID(data, "guild_id")
	if !ok || err != nil {
		return nil, err
	}
	user, err := parseUser(data)
	if err != nil {
		return nil, err
	}
	m.store.RemoveMember(guildID, user.ID)
	return &MemberRemove{GenericEvent: header, GuildID: guildID, User: user}, nil
}

func handleMembersChunk(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guildID, ok, err := optionalID(data, "guild_id")
	if !ok || err != nil {
		return nil, err
	}
	members, err := decodeArray[entity.Member](data, "members")
	if err != nil {
		return nil, err
	}
	for i := range members {
		if _, err := requiredID(data.Get("members").GetIndex(i).Get("user"), "id"); err != nil {
			return nil, err
		}
		members[i] = normalizeMember(members[i]).WithGuildID(guildID)
	}
	m.store.UpsertMembers(guildID, members)
	return &MembersChunk{
		GenericEvent: header,
		GuildID:      guildID,
		Members:      members,
		ChunkIndex:   data.Get("chunk_index").MustInt(),
		ChunkCount:   data.Get("chunk_count").MustInt(),
	}, nil
}

func handleRoleUpsert(create bool) handler {
	return func(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
		guildID, ok, err := optionalID(data, "guild_id")
		if !ok || err != nil {
			return nil, err
		}
		payload, err := object(data, "role")
		if err != nil {
			return nil, err
		}
		if _, err := requiredID(payload, "id"); err != nil {
			return nil, err
		}
		var role entity.Role
		if err := decodeObject(payload, &role); err != nil {
			return nil, err
		}
		role = role.WithGuildID(guildID)
		m.store.UpsertRole(guildID, role)
		if create {
			return &RoleCreate{GenericEvent: header, Role: role}, nil
		}
		return &RoleUpdate{GenericEvent: header, Role: role}, nil
	}
}

func handleRoleDelete(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guildID, ok, err := optionalID(data, "guild_id")
	if !ok || err != nil {
		return nil, err
	}
	roleID, err := requiredID(data, "role_id")
	if err != nil {
		return nil, err
	}
	m.store.RemoveRole(guildID, roleID)
	return &RoleDelete{GenericEvent: header, GuildID: guildID, RoleID: roleID}, nil
}

func handleEmojisUpdate(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	guildID, ok, err := optionalID(data, "guild_id")
	if !ok || err != nil {
		return nil, err
	}
	emojis, err := decodeArray[entity.Emoji](data, "emojis")
	if err != nil {
		return nil, err
	}
	m.store.SetEmojis(guildID, emojis)
	return &EmojisUpdate{GenericEvent: header, GuildID: guildID, Emojis: emojis}, nil
}

func handleMessageCreate(m *Mapper, header *GenericEvent, data *simplejson.Json) (Event, error) {
	messageID, err := requiredID(data, "id")
	if err != nil {
		return nil, err
	}
	channelID, err := requiredID(data, "channel_id")
	if err != nil {
		return nil, err
	}
	author, err := parseAuthor(data)
	if err != nil {
		return nil, err
	}
	if cached, ok := m.store.TryGetUser(author.ID); ok {
		if author.Username == "" {
			author.Username = cached.Username
		}
		author.Bot = author.Bot || cached.Bot
	}
	event := &MessageCreate{
		GenericEvent: header,
		ID:           messageID,
		ChannelID:    channelID,
		Content:      data.Get("content").MustString(),
		Author:       author,
	}
	if guildID, ok, err := optionalID(data, "guild_id"); err != nil {
		return nil, err
	} else if ok {
		event.GuildID = &guildID
		if guild, ok := m.store.TryGetGuild(guildID); ok {
			event.GuildName = guild.Name
		}
	}
	return event, nil
}

func parseGuild(data *simplejson.Json) (entity.Guild, error) {
	if _, err := requiredID(data, "id"); err != nil {
		return entity.Guild{}, err
	}
	var guild entity.Guild
	if err := decodeObject(data, &guild); err != nil {
		return entity.Guild{}, err
	}
	return guild.Normalized(), nil
}

// parseChannel reports ok=false for channels outside any guild.
func parseChannel(data *simplejson.Json) (snowflake.ID, entity.Channel, bool, error) {
	guildID, ok, err := optionalID(data, "guild_id")
	if !ok || err != nil {
		return 0, entity.Channel{}, false, err
	}
	if _, err := requiredID(data, "id"); err != nil {
		return 0, entity.Channel{}, false, err
	}
	var channel entity.Channel
	if err := decodeObject(data, &channel); err != nil {
		return 0, entity.Channel{}, false, err
	}
	return guildID, channel, true, nil
}

func parseMember(data *simplejson.Json) (entity.Member, error) {
	if _, err := parseUser(data); err != nil {
		return entity.Member{}, err
	}
	var member entity.Member
	if err := decodeObject(data, &member); err != nil {
		return entity.Member{}, err
	}
	return normalizeMember(member), nil
}

func parseUser(data *simplejson.Json) (entity.User, error) {
	return parseUserAt(data, "user")
}

func parseAuthor(data *simplejson.Json) (entity.User, error) {
	return parseUserAt(data, "author")
}

func parseUserAt(data *simplejson.Json, key string) (entity.User, error) {
	payload, err := object(data, key)
	if err != nil {
		return entity.User{}, err
	}
	if _, err := requiredID(payload, "id"); err != nil {
		return entity.User{}, err
	}
	var user entity.User
	if err := decodeObject(payload, &user); err != nil {
		return entity.User{}, err
	}
	return user, nil
}

func normalizeMember(member entity.Member) entity.Member {
	if member.RoleIDs == nil {
		member.RoleIDs = []snowflake.ID{}
	}
	member.User.GuildIDs = nil
	return member
}
