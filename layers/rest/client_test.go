package rest

import (
	"errors"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
	"testing"
)

type fakeAPI struct {
	guild   *discord.RestGuild
	members []discord.Member
	err     error
	afters  []snowflake.ID
}

func (f *fakeAPI) GetGuild(guildID snowflake.ID, _ bool, _ ...rest.RequestOpt) (*discord.RestGuild, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.guild, nil
}

func (f *fakeAPI) GetMembers(_ snowflake.ID, limit int, after snowflake.ID, _ ...rest.RequestOpt) ([]discord.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.afters = append(f.afters, after)
	start := 0
	for i, m := range f.members {
		if m.User.ID == after {
			start = i + 1
		}
	}
	end := min(start+limit, len(f.members))
	return f.members[start:end], nil
}

var _ cache.Fetcher = (*Fetcher)(nil)

func TestFetchGuild(t *testing.T) {
	api := &fakeAPI{guild: &discord.RestGuild{
		Guild:  discord.Guild{ID: 10, Name: "gophers", OwnerID: 3},
		Roles:  []discord.Role{{ID: 10, Name: "@everyone"}, {ID: 11, Name: "mod", Color: 0xff}},
		Emojis: []discord.Emoji{{ID: 5, Name: "go"}},
	}}

	guild, err := NewFetcher(api).FetchGuild(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "gophers", guild.Name)
	assert.Equal(t, snowflake.ID(3), guild.OwnerID)
	require.Len(t, guild.Roles, 2)
	assert.Equal(t, snowflake.ID(10), guild.Roles[1].GuildID)
	assert.Equal(t, 0xff, guild.Roles[1].Color)
	assert.Equal(t, []entity.Emoji{{ID: 5, Name: "go"}}, guild.Emojis)
}

func TestFetchMembersPages(t *testing.T) {
	api := &fakeAPI{}
	for i := 1; i <= memberPage+2; i++ {
		api.members = append(api.members, discord.Member{User: discord.User{ID: snowflake.ID(i)}})
	}

	members, err := NewFetcher(api).FetchMembers(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, members, memberPage+2)
	assert.Equal(t, []snowflake.ID{0, memberPage}, api.afters)
	for _, m := range members {
		assert.Equal(t, snowflake.ID(10), m.GuildID)
		assert.NotNil(t, m.RoleIDs)
	}
}

func TestFetchErrors(t *testing.T) {
	boom := errors.New("boom")
	f := NewFetcher(&fakeAPI{err: boom})

	_, err := f.FetchGuild(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	_, err = f.FetchMembers(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestCacheFetchesThroughREST(t *testing.T) {
	api := &fakeAPI{
		guild:   &discord.RestGuild{Guild: discord.Guild{ID: 10, Name: "gophers"}},
		members: []discord.Member{{User: discord.User{ID: 1, Username: "a"}}},
	}
	c := cache.New(cache.WithFetcher(NewFetcher(api)))

	guild, err := c.GetOrFetchGuild(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "gophers", guild.Name)

	members, err := c.GetOrFetchMembers(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, members, 1)
	user, ok := c.TryGetUser(1)
	assert.True(t, ok)
	assert.Equal(t, "a", user.Username)
}
