// Package entity holds the value types mirrored from the gateway.
//
// Entities are immutable once stored: the cache never writes to a stored
// value, it replaces it. Fixing an owning-guild reference always goes through
// WithGuildID, which returns a corrected copy.
package entity

import (
	"slices"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

type Guild struct {
	ID          snowflake.ID `json:"id"`
	Name        string       `json:"name"`
	OwnerID     snowflake.ID `json:"owner_id"`
	Unavailable bool         `json:"unavailable"`
	Roles       []Role       `json:"roles"`
	Emojis      []Emoji      `json:"emojis"`
}

// Role returns the role with the given id.
func (g Guild) Role(id snowflake.ID) (Role, bool) {
	for _, role := range g.Roles {
		if role.ID == id {
			return role, true
		}
	}
	return Role{}, false
}

// WithRole returns a copy of g where role replaces the role with the same id,
// or is appended when g has no such role.
func (g Guild) WithRole(role Role) Guild {
	role = role.WithGuildID(g.ID)
	roles := make([]Role, 0, len(g.Roles)+1)
	replaced := false
	for _, existing := range g.Roles {
		if existing.ID == role.ID {
			if !replaced {
				roles = append(roles, role)
				replaced = true
			}
			continue
		}
		roles = append(roles, existing)
	}
	if !replaced {
		roles = append(roles, role)
	}
	g.Roles = roles
	return g
}

// WithoutRole returns a copy of g without the role id. The second result
// reports whether g had that role.
func (g Guild) WithoutRole(id snowflake.ID) (Guild, bool) {
	if _, ok := g.Role(id); !ok {
		return g, false
	}
	roles := make([]Role, 0, len(g.Roles)-1)
	for _, role := range g.Roles {
		if role.ID != id {
			roles = append(roles, role)
		}
	}
	g.Roles = roles
	return g, true
}

// WithEmojis returns a copy of g carrying emojis.
func (g Guild) WithEmojis(emojis []Emoji) Guild {
	g.Emojis = append(make([]Emoji, 0, len(emojis)), emojis...)
	return g
}

// Normalized returns a copy of g whose roles point at g, with duplicate role
// ids collapsed to their last occurrence.
func (g Guild) Normalized() Guild {
	seen := make(map[snowflake.ID]int, len(g.Roles))
	roles := make([]Role, 0, len(g.Roles))
	for _, role := range g.Roles {
		role = role.WithGuildID(g.ID)
		if i, ok := seen[role.ID]; ok {
			roles[i] = role
			continue
		}
		seen[role.ID] = len(roles)
		roles = append(roles, role)
	}
	g.Roles = roles
	if g.Emojis == nil {
		g.Emojis = []Emoji{}
	}
	return g
}

// Clone returns a copy of g that shares no memory with it.
func (g Guild) Clone() Guild {
	g.Roles = slices.Clone(g.Roles)
	g.Emojis = slices.Clone(g.Emojis)
	return g
}

type Channel struct {
	ID       snowflake.ID        `json:"id"`
	GuildID  snowflake.ID        `json:"guild_id"`
	Name     string              `json:"name"`
	Type     discord.ChannelType `json:"type"`
	Position int                 `json:"position"`
	ParentID *snowflake.ID       `json:"parent_id"`
}

func (c Channel) WithGuildID(guildID snowflake.ID) Channel {
	c.GuildID = guildID
	return c
}

func (c Channel) Clone() Channel {
	c.ParentID = clonePtr(c.ParentID)
	return c
}

type Member struct {
	User          User           `json:"user"`
	GuildID       snowflake.ID   `json:"guild_id"`
	Nick          *string        `json:"nick"`
	RoleIDs       []snowflake.ID `json:"roles"`
	Deaf          bool           `json:"deaf"`
	Mute          bool           `json:"mute"`
	TimedOutUntil *time.Time     `json:"communication_disabled_until"`
}

func (m Member) WithGuildID(guildID snowflake.ID) Member {
	m.GuildID = guildID
	return m
}

// Clone returns a copy of m that shares no memory with it.
func (m Member) Clone() Member {
	m.User = m.User.Clone()
	m.Nick = clonePtr(m.Nick)
	m.RoleIDs = slices.Clone(m.RoleIDs)
	m.TimedOutUntil = clonePtr(m.TimedOutUntil)
	return m
}

// EffectiveName is the nickname when set, the username otherwise.
func (m Member) EffectiveName() string {
	if m.Nick != nil && *m.Nick != "" {
		return *m.Nick
	}
	return m.User.Username
}

// TimedOut reports whether the member is timed out at now.
func (m Member) TimedOut(now time.Time) bool {
	return m.TimedOutUntil != nil && m.TimedOutUntil.After(now)
}

type Role struct {
	ID          snowflake.ID        `json:"id"`
	GuildID     snowflake.ID        `json:"guild_id"`
	Name        string              `json:"name"`
	Color       int                 `json:"color"`
	Position    int                 `json:"position"`
	Permissions discord.Permissions `json:"permissions"`
}

func (r Role) WithGuildID(guildID snowflake.ID) Role {
	r.GuildID = guildID
	return r
}

// User is shared by every membership of the same account. GuildIDs is derived
// and only filled by cache user snapshots.
type User struct {
	ID       snowflake.ID   `json:"id"`
	Username string         `json:"username"`
	Bot      bool           `json:"bot"`
	GuildIDs []snowflake.ID `json:"guild_ids,omitempty"`
}

func (u User) Clone() User {
	u.GuildIDs = slices.Clone(u.GuildIDs)
	return u
}

type Emoji struct {
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
