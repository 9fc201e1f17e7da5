// Package platform owns the process-wide cache and the gateway connections
// that feed it.
package platform

import (
	"errors"
	"fmt"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	disgocache "github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/fuad-daoud/discord-mirror/config"
	"github.com/fuad-daoud/discord-mirror/layers/rest"
	"github.com/fuad-daoud/discord-mirror/logger/dlog"
	"github.com/fuad-daoud/discord-mirror/mapper"
	"github.com/fuad-daoud/discord-mirror/sharding"
	"github.com/robfig/cron/v3"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
	"io"
	"sync"
)

var ErrNotInitialized = errors.New("platform: not initialized")

// Connector opens one shard's gateway connection and hands every dispatch
// frame to sink. The returned func closes the connection.
type Connector func(ctx context.Context, p sharding.Partition, sink func(mapper.Message)) (func(context.Context), error)

type Option func(*options)

type options struct {
	connect Connector
	fetcher cache.Fetcher
}

// WithConnector replaces the disgo gateway connection.
func WithConnector(connect Connector) Option {
	return func(o *options) {
		o.connect = connect
	}
}

// WithFetcher replaces the REST fetcher used for cache misses.
func WithFetcher(f cache.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

type platform struct {
	cache   *cache.Cache
	census  *cron.Cron
	closers []func(context.Context)
	cancel  context.CancelFunc
	group   *errgroup.Group
}

var (
	mu       sync.Mutex
	instance *platform
)

// Init builds the cache, connects every shard in cfg.Partitions and starts
// the census schedule. It fails when called twice without Close.
func Init(ctx context.Context, cfg config.Config, opts ...Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o := options{connect: connectGateway(cfg.Token)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = rest.New(cfg.Token)
	}

	mu.Lock()
	defer mu.Unlock()
	if instance != nil {
		return errors.New("platform: already initialized")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	p := &platform{
		cache:  cache.New(cache.WithFetcher(o.fetcher)),
		cancel: cancel,
		group:  group,
	}

	partitions := cfg.Partitions()
	for _, partition := range partitions {
		if err := p.startShard(ctx, groupCtx, partition, cfg.ErrorBuffer, o.connect); err != nil {
			p.shutdown(ctx)
			return err
		}
	}

	p.census = cron.New()
	entryID, err := p.census.AddFunc(cfg.CensusCron, func() {
		LogCensus(p.cache, partitions)
	})
	if err != nil {
		p.shutdown(ctx)
		return fmt.Errorf("schedule census %q: %w", cfg.CensusCron, err)
	}
	p.census.Start()
	dlog.Debug("Scheduled census", "entryID", entryID, "spec", cfg.CensusCron)

	instance = p
	dlog.Info("Platform up", "shards", len(partitions), "shardCount", cfg.ShardCount)
	return nil
}

func (p *platform) startShard(ctx, runCtx context.Context, partition sharding.Partition, errorBuffer int, connect Connector) error {
	messages := make(chan mapper.Message, 1024)
	m := mapper.New(p.cache, mapper.WithShard(partition), mapper.WithErrorBuffer(errorBuffer))

	p.group.Go(func() error {
		err := m.Run(runCtx, mapper.FromChan(messages))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	p.group.Go(func() error {
		for {
			select {
			case <-runCtx.Done():
				return nil
			case err := <-m.Errors():
				dlog.Debug("Shard dropped a message", "shard", partition.String(), "err", err)
			}
		}
	})

	sink := func(msg mapper.Message) {
		select {
		case messages <- msg:
		case <-runCtx.Done():
		}
	}
	closeShard, err := connect(ctx, partition, sink)
	if err != nil {
		return fmt.Errorf("connect shard %s: %w", partition, err)
	}
	p.closers = append(p.closers, closeShard)
	dlog.Info("Shard connected", "shard", partition.String())
	return nil
}

func (p *platform) shutdown(ctx context.Context) error {
	if p.census != nil {
		<-p.census.Stop().Done()
	}
	for _, closeShard := range p.closers {
		closeShard(ctx)
	}
	p.cancel()
	return p.group.Wait()
}

// Cache returns the process-wide cache. Init must have succeeded.
func Cache() *cache.Cache {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		panic(ErrNotInitialized)
	}
	return instance.cache
}

// Close disconnects every shard and stops the mappers. The cache is
// discarded; Init may be called again afterwards.
func Close(ctx context.Context) error {
	mu.Lock()
	p := instance
	instance = nil
	mu.Unlock()
	if p == nil {
		return ErrNotInitialized
	}
	err := p.shutdown(ctx)
	dlog.Info("Platform closed")
	return err
}

func connectGateway(token string) Connector {
	return func(ctx context.Context, p sharding.Partition, sink func(mapper.Message)) (func(context.Context), error) {
		client, err := disgo.New(token,
			bot.WithGatewayConfigOpts(
				gateway.WithIntents(
					gateway.IntentsNonPrivileged,
					gateway.IntentGuildMembers,
					gateway.IntentGuildMessages,
				),
				gateway.WithShardID(int(p.ShardID)),
				gateway.WithShardCount(int(p.ShardCount)),
				gateway.WithEnableRawEvents(true),
			),
			bot.WithCacheConfigOpts(
				disgocache.WithCaches(disgocache.FlagsNone),
			),
			bot.WithEventListenerFunc(func(e *events.Raw) {
				data, err := io.ReadAll(e.Payload)
				if err != nil {
					dlog.Warn("Could not read raw payload", "type", e.EventType, "err", err)
					return
				}
				sink(mapper.Message{Type: e.EventType, Sequence: e.SequenceNumber(), Data: data})
			}),
		)
		if err != nil {
			return nil, err
		}
		if err = client.OpenGateway(ctx); err != nil {
			return nil, err
		}
		return client.Close, nil
	}
}
