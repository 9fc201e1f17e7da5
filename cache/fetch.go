package cache

import (
	"errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"golang.org/x/net/context"
	"slices"
)

var ErrNoFetcher = errors.New("cache: no fetcher configured")

// Fetcher pulls state the gateway has not delivered yet.
type Fetcher interface {
	FetchGuild(ctx context.Context, guildID snowflake.ID) (entity.Guild, error)
	FetchMembers(ctx context.Context, guildID snowflake.ID) ([]entity.Member, error)
}

// GetOrFetchGuild returns the stored guild, or fetches and stores it when it
// is missing or only an unavailable placeholder. Concurrent misses for the
// same guild share one fetch.
func (c *Cache) GetOrFetchGuild(ctx context.Context, guildID snowflake.ID) (entity.Guild, error) {
	if guild, ok := c.TryGetGuild(guildID); ok && !guild.Unavailable {
		return guild, nil
	}
	if c.fetcher == nil {
		return entity.Guild{}, ErrNoFetcher
	}
	v, err, _ := c.fetches.Do("guild:"+guildID.String(), func() (any, error) {
		guild, err := c.fetcher.FetchGuild(ctx, guildID)
		if err != nil {
			c.log().Error("Fetching guild failed", "guild", guildID, "err", err)
			return nil, err
		}
		guild.ID = guildID
		guild = guild.Normalized()
		c.UpsertGuild(guild)
		return guild, nil
	})
	if err != nil {
		return entity.Guild{}, err
	}
	return v.(entity.Guild), nil
}

// GetOrFetchMembers returns the stored members of the guild, or fetches and
// stores them when none are stored.
func (c *Cache) GetOrFetchMembers(ctx context.Context, guildID snowflake.ID) ([]entity.Member, error) {
	if members := c.Members(guildID); members != nil && members.Len() > 0 {
		return members.ToSlice(), nil
	}
	if c.fetcher == nil {
		return nil, ErrNoFetcher
	}
	v, err, _ := c.fetches.Do("members:"+guildID.String(), func() (any, error) {
		members, err := c.fetcher.FetchMembers(ctx, guildID)
		if err != nil {
			c.log().Error("Fetching members failed", "guild", guildID, "err", err)
			return nil, err
		}
		c.SetMembers(guildID, members)
		return c.ensureLists(guildID).members.ToSlice(), nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]entity.Member)), nil
}
