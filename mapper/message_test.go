package mapper

import (
	"github.com/disgoorg/disgo/gateway"
	"github.com/fuad-daoud/discord-mirror/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
	"io"
	"strings"
	"testing"
	"time"
)

const capture = `{"op": 10, "d": {"heartbeat_interval": 41250}, "t": null, "s": null}
{"op": 0, "t": "READY", "s": 1, "d": {"session_id": "s", "guilds": [{"id": "100", "unavailable": true}]}}

this line is not json
{"op": 0, "t": "GUILD_CREATE", "s": 2, "d": {"id": "100", "name": "gophers", "channels": [{"id": "10", "name": "general"}]}}
{"op": 0, "t": "CHANNEL_CREATE", "s": 3, "d": {"id": "bad", "guild_id": "100"}}
{"op": 0, "t": "CHANNEL_CREATE", "s": 4, "d": {"id": "11", "guild_id": "100", "name": "random"}}
{"op": 11}
`

func TestReaderTransport(t *testing.T) {
	transport := NewReaderTransport(strings.NewReader(capture))

	var kinds []gateway.EventType
	var sequences []int
	for {
		msg, err := transport.Next(context.Background())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, msg.Type)
		sequences = append(sequences, msg.Sequence)
	}

	assert.Equal(t, []gateway.EventType{
		gateway.EventTypeReady,
		gateway.EventTypeGuildCreate,
		gateway.EventTypeChannelCreate,
		gateway.EventTypeChannelCreate,
	}, kinds)
	assert.Equal(t, []int{1, 2, 3, 4}, sequences)
}

func TestRunReplaysCapture(t *testing.T) {
	c := cache.New()
	m := New(c)

	err := m.Run(context.Background(), NewReaderTransport(strings.NewReader(capture)))

	require.NoError(t, err)
	guild, ok := c.TryGetGuild(100)
	require.True(t, ok)
	assert.False(t, guild.Unavailable)
	assert.Equal(t, 2, c.Channels(100).Len())

	problem := (<-m.Errors()).(*ParseError)
	assert.Equal(t, 3, problem.Sequence)
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(cache.New())
	ch := make(chan Message)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, FromChan(ch))
	}()
	ch <- message(gateway.EventTypeGuildCreate, `{"id": "1"}`)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunEndsWhenChannelCloses(t *testing.T) {
	c := cache.New()
	m := New(c)
	ch := make(chan Message, 2)
	ch <- message(gateway.EventTypeGuildCreate, `{"id": "1"}`)
	ch <- message(gateway.EventTypeGuildCreate, `{"id": "2"}`)
	close(ch)

	require.NoError(t, m.Run(context.Background(), FromChan(ch)))
	assert.Equal(t, 2, c.Guilds().Len())
}
