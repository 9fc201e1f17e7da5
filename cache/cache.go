// Package cache keeps the live mirror of guild state fed by the gateway.
//
// A Cache owns one observable map of guilds and, per guild, one observable
// list of channels and one of members. The per-guild lists are created the
// first time anything is written for that guild, so writers on different
// guilds never share a lock.
//
// Entities may arrive before the guild that owns them. They are stored as
// they came; once the guild is known, every write for it stores entities
// whose GuildID points at it.
package cache

import (
	"cmp"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/observable"
	"golang.org/x/sync/singleflight"
	"log/slog"
	"slices"
	"sync"
)

type Option func(*Cache)

// WithDispatcher delivers every container notification through d.
func WithDispatcher(d observable.Dispatcher) Option {
	return func(c *Cache) {
		c.containerOpts = append(c.containerOpts, observable.WithDispatcher(d))
	}
}

// WithFetcher sets the source used by the GetOrFetch methods on a miss.
func WithFetcher(f Fetcher) Option {
	return func(c *Cache) {
		c.fetcher = f
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

type Cache struct {
	guilds *observable.Map[snowflake.ID, entity.Guild]

	// mu guards the lists registry only. No notification is ever raised
	// while it is held.
	mu    sync.RWMutex
	lists map[snowflake.ID]*guildLists

	containerOpts []observable.Option
	fetcher       Fetcher
	fetches       singleflight.Group
	logger        *slog.Logger
}

type guildLists struct {
	channels *observable.List[entity.Channel]
	members  *observable.List[entity.Member]
}

func New(opts ...Option) *Cache {
	c := &Cache{lists: make(map[snowflake.ID]*guildLists)}
	for _, opt := range opts {
		opt(c)
	}
	c.guilds = observable.NewMap[snowflake.ID, entity.Guild](c.containerOpts...)
	return c
}

func (c *Cache) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return dlog.Logger()
}

func (c *Cache) listsFor(guildID snowflake.ID) *guildLists {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[guildID]
}

func (c *Cache) ensureLists(guildID snowflake.ID) *guildLists {
	if lists := c.listsFor(guildID); lists != nil {
		return lists
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if lists, ok := c.lists[guildID]; ok {
		return lists
	}
	lists := &guildLists{
		channels: observable.NewList(sameChannel, c.containerOpts...),
		members:  observable.NewList(sameMember, c.containerOpts...),
	}
	c.lists[guildID] = lists
	return lists
}

// detach unregisters the lists of every guild for which drop returns true
// and hands them back so they can be cleared outside the lock.
func (c *Cache) detach(drop func(snowflake.ID) bool) []*guildLists {
	c.mu.Lock()
	defer c.mu.Unlock()
	var detached []*guildLists
	for id, lists := range c.lists {
		if drop(id) {
			detached = append(detached, lists)
			delete(c.lists, id)
		}
	}
	return detached
}

func (l *guildLists) clear() {
	l.channels.Clear()
	l.members.Clear()
}

// knownGuilds returns the stored guilds accepted by include, ordered by id.
func (c *Cache) knownGuilds(include func(snowflake.ID) bool) []entity.Guild {
	guilds := c.guilds.Values()
	if include != nil {
		guilds = slices.DeleteFunc(guilds, func(g entity.Guild) bool { return !include(g.ID) })
	}
	slices.SortFunc(guilds, func(a, b entity.Guild) int { return cmp.Compare(a.ID, b.ID) })
	return guilds
}

func sameChannel(a, b entity.Channel) bool { return a.ID == b.ID }

func sameMember(a, b entity.Member) bool { return a.User.ID == b.User.ID }

// lastByID keeps one item per id: the last one given, at the position of the
// first.
func lastByID[T any](items []T, id func(T) snowflake.ID) []T {
	seen := make(map[snowflake.ID]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if i, ok := seen[id(item)]; ok {
			out[i] = item
			continue
		}
		seen[id(item)] = len(out)
		out = append(out, item)
	}
	return out
}
