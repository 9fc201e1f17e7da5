// Package mapper turns raw gateway dispatch frames into cache mutations and
// typed events.
//
// Each message is handled inside its own recover boundary: a payload that
// fails to parse costs one dropped update and is reported on Errors, and the
// next message is handled as usual.
package mapper

import (
	"errors"
	"fmt"
	"github.com/bitly/go-simplejson"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-mirror/entity"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/sharding"
	"github.com/google/uuid"
	"golang.org/x/net/context"
	"io"
	"log/slog"
	"sync"
)

// Store is the part of the cache the mapper writes to and reads from.
type Store interface {
	UpsertGuild(guild entity.Guild)
	RemoveGuild(guildID snowflake.ID)
	MarkGuildUnavailable(guildID snowflake.ID)
	ReplaceGuilds(guilds []entity.Guild)
	ReplaceShardGuilds(p sharding.Partition, guilds []entity.Guild)
	UpsertChannel(guildID snowflake.ID, channel entity.Channel)
	RemoveChannel(guildID, channelID snowflake.ID)
	SetChannels(guildID snowflake.ID, channels []entity.Channel)
	UpsertMember(guildID snowflake.ID, member entity.Member)
	UpsertMembers(guildID snowflake.ID, members []entity.Member)
	RemoveMember(guildID, userID snowflake.ID)
	SetMembers(guildID snowflake.ID, members []entity.Member)
	UpsertRole(guildID snowflake.ID, role entity.Role)
	RemoveRole(guildID, roleID snowflake.ID)
	SetEmojis(guildID snowflake.ID, emojis []entity.Emoji)
	TryGetGuild(guildID snowflake.ID) (entity.Guild, bool)
	TryGetUser(userID snowflake.ID) (entity.User, bool)
}

// ParseError reports a message that could not be applied. ID identifies the
// problem in logs.
type ParseError struct {
	ID       uuid.UUID
	Type     gateway.EventType
	Sequence int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (seq %d, problem %s): %v", e.Type, e.Sequence, e.ID, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a func taking one concrete event type; other events
// are ignored.
type ListenerFunc[E Event] func(E)

func (f ListenerFunc[E]) OnEvent(event Event) {
	if e, ok := event.(E); ok {
		f(e)
	}
}

type Option func(*Mapper)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = logger
	}
}

// WithErrorBuffer sets the capacity of the Errors channel. Reports that do
// not fit are dropped.
func WithErrorBuffer(size int) Option {
	return func(m *Mapper) {
		m.errors = make(chan error, size)
	}
}

// WithShard tags events with the shard the mapper reads from. READY then
// replaces only the guilds that shard owns, so several mappers can share one
// store. Guild events for guilds the shard does not own are logged.
func WithShard(p sharding.Partition) Option {
	return func(m *Mapper) {
		m.shard = &p
	}
}

type Mapper struct {
	store  Store
	logger *slog.Logger
	shard  *sharding.Partition
	errors chan error

	mu        sync.RWMutex
	listeners []Listener
}

const defaultErrorBuffer = 64

func New(store Store, opts ...Option) *Mapper {
	m := &Mapper{store: store}
	for _, opt := range opts {
		opt(m)
	}
	if m.errors == nil {
		m.errors = make(chan error, defaultErrorBuffer)
	}
	return m
}

func (m *Mapper) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return dlog.Logger()
}

// Errors delivers a *ParseError for every message that was dropped.
func (m *Mapper) Errors() <-chan error {
	return m.errors
}

func (m *Mapper) AddListener(listeners ...Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listeners...)
}

// Run handles messages from t until it ends or ctx is done. A transport that
// ends with io.EOF makes Run return nil.
func (m *Mapper) Run(ctx context.Context, t Transport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := t.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("next message: %w", err)
		}
		m.Handle(msg)
	}
}

// Handle applies one message and emits its event. It never panics.
func (m *Mapper) Handle(msg Message) {
	event, err := m.apply(msg)
	if err != nil {
		m.report(msg, err)
		return
	}
	if event != nil {
		m.emit(event)
	}
}

func (m *Mapper) apply(msg Message) (event Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			event, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	h, ok := handlers[msg.Type]
	if !ok {
		m.log().Debug("Ignoring event", "type", msg.Type, "seq", msg.Sequence)
		return nil, nil
	}
	data, err := simplejson.NewJson(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	header := &GenericEvent{EventType: msg.Type, Sequence: msg.Sequence}
	if m.shard != nil {
		header.ShardID = m.shard.ShardID
	}
	return h(m, header, data)
}

func (m *Mapper) report(msg Message, err error) {
	problem := &ParseError{ID: uuid.New(), Type: msg.Type, Sequence: msg.Sequence, Err: err}
	m.log().Error("Dropped message", "problem", problem.ID, "type", msg.Type, "seq", msg.Sequence, "err", err)
	select {
	case m.errors <- problem:
	default:
		m.log().Warn("Error channel full, report dropped", "problem", problem.ID)
	}
}

func (m *Mapper) emit(event Event) {
	m.mu.RLock()
	listeners := m.listeners
	m.mu.RUnlock()
	for _, l := range listeners {
		m.notify(l, event)
	}
}

func (m *Mapper) notify(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log().Error("Listener panicked", "type", event.Type(), "panic", r)
		}
	}()
	l.OnEvent(event)
}

// checkShard logs guild events routed to a shard that does not own the guild.
func (m *Mapper) checkShard(kind gateway.EventType, guildID snowflake.ID) {
	if m.shard != nil && !m.shard.Owns(guildID) {
		m.log().Warn("Guild event on foreign shard", "type", kind, "guild", guildID, "shard", m.shard.String())
	}
}
