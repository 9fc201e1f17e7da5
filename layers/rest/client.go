// Package rest fetches guild state over the REST API for cache misses.
package rest

import (
	"fmt"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"golang.org/x/net/context"
)

// memberPage is the largest page the members endpoint returns.
const memberPage = 1000

// API is the part of rest.Rest the fetcher calls.
type API interface {
	GetGuild(guildID snowflake.ID, withCounts bool, opts ...rest.RequestOpt) (*discord.RestGuild, error)
	GetMembers(guildID snowflake.ID, limit int, after snowflake.ID, opts ...rest.RequestOpt) ([]discord.Member, error)
}

// Fetcher implements cache.Fetcher on top of the REST API.
type Fetcher struct {
	api API
}

func NewFetcher(api API) *Fetcher {
	return &Fetcher{api: api}
}

// New builds a fetcher with its own REST client authenticated by token.
func New(token string) *Fetcher {
	return NewFetcher(rest.New(rest.NewClient(token)))
}

func (f *Fetcher) FetchGuild(ctx context.Context, guildID snowflake.ID) (entity.Guild, error) {
	guild, err := f.api.GetGuild(guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return entity.Guild{}, fmt.Errorf("get guild %s: %w", guildID, err)
	}
	dlog.Debug("Fetched guild", "guild", guildID, "roles", len(guild.Roles))
	return toGuild(*guild), nil
}

// FetchMembers pages through the whole member list of the guild.
func (f *Fetcher) FetchMembers(ctx context.Context, guildID snowflake.ID) ([]entity.Member, error) {
	var (
		members []entity.Member
		after   snowflake.ID
	)
	for {
		page, err := f.api.GetMembers(guildID, memberPage, after, rest.WithCtx(ctx))
		if err != nil {
			return nil, fmt.Errorf("get members of %s after %s: %w", guildID, after, err)
		}
		for _, member := range page {
			members = append(members, toMember(guildID, member))
		}
		if len(page) < memberPage {
			break
		}
		after = page[len(page)-1].User.ID
	}
	dlog.Debug("Fetched members", "guild", guildID, "count", len(members))
	return members, nil
}

func toGuild(g discord.RestGuild) entity.Guild {
	guild := entity.Guild{
		ID:      g.ID,
		Name:    g.Name,
		OwnerID: g.OwnerID,
		Roles:   make([]entity.Role, 0, len(g.Roles)),
		Emojis:  make([]entity.Emoji, 0, len(g.Emojis)),
	}
	for _, role := range g.Roles {
		guild.Roles = append(guild.Roles, entity.Role{
			ID:          role.ID,
			GuildID:     g.ID,
			Name:        role.Name,
			Color:       role.Color,
			Position:    role.Position,
			Permissions: role.Permissions,
		})
	}
	for _, emoji := range g.Emojis {
		guild.Emojis = append(guild.Emojis, entity.Emoji{ID: emoji.ID, Name: emoji.Name})
	}
	return guild
}

func toMember(guildID snowflake.ID, m discord.Member) entity.Member {
	roleIDs := append(make([]snowflake.ID, 0, len(m.RoleIDs)), m.RoleIDs...)
	return entity.Member{
		User: entity.User{
			ID:       m.User.ID,
			Username: m.User.Username,
			Bot:      m.User.Bot,
		},
		GuildID:       guildID,
		Nick:          m.Nick,
		RoleIDs:       roleIDs,
		Deaf:          m.Deaf,
		Mute:          m.Mute,
		TimedOutUntil: m.CommunicationDisabledUntil,
	}
}
