package mapper

import (
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
)

// Event is implemented by every event a Mapper emits.
type Event interface {
	Type() gateway.EventType
	Generic() *GenericEvent
}

// GenericEvent carries what every event shares.
type GenericEvent struct {
	EventType gateway.EventType
	Sequence  int
	ShardID   uint32
}

func (e *GenericEvent) Type() gateway.EventType { return e.EventType }

func (e *GenericEvent) Generic() *GenericEvent { return e }

type Ready struct {
	*GenericEvent
	SessionID string
	User      entity.User
	// Guilds are unavailable placeholders until their GuildCreate arrives.
	Guilds []entity.Guild
}

type GuildCreate struct {
	*GenericEvent
	Guild    entity.Guild
	Channels []entity.Channel
	Members  []entity.Member
}

type GuildUpdate struct {
	*GenericEvent
	Guild entity.Guild
}

// GuildDelete is sent when the bot leaves a guild, or with Unavailable set
// when the guild goes through an outage.
type GuildDelete struct {
	*GenericEvent
	GuildID     snowflake.ID
	Unavailable bool
}

type ChannelCreate struct {
	*GenericEvent
	Channel entity.Channel
	Thread  bool
}

type ChannelUpdate struct {
	*GenericEvent
	Channel entity.Channel
	Thread  bool
}

type ChannelDelete struct {
	*GenericEvent
	Channel entity.Channel
	Thread  bool
}

type MemberAdd struct {
	*GenericEvent
	Member entity.Member
}

type MemberUpdate struct {
	*GenericEvent
	Member entity.Member
}

type MemberRemove struct {
	*GenericEvent
	GuildID snowflake.ID
	User    entity.User
}

type MembersChunk struct {
	*GenericEvent
	GuildID    snowflake.ID
	Members    []entity.Member
	ChunkIndex int
	ChunkCount int
}

type RoleCreate struct {
	*GenericEvent
	Role entity.Role
}

type RoleUpdate struct {
	*GenericEvent
	Role entity.Role
}

type RoleDelete struct {
	*GenericEvent
	GuildID snowflake.ID
	RoleID  snowflake.ID
}

type EmojisUpdate struct {
	*GenericEvent
	GuildID snowflake.ID
	Emojis  []entity.Emoji
}

// MessageCreate is not cached. Author is completed from the cached user and
// GuildName from the cached guild when they are known.
type MessageCreate struct {
	*GenericEvent
	ID        snowflake.ID
	ChannelID snowflake.ID
	GuildID   *snowflake.ID
	GuildName string
	Content   string
	Author    entity.User
}
