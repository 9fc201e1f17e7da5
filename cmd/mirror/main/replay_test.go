package main

import (
	"bytes"
	"encoding/json"
	"github.com/fuad-daoud/discord-mirror/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const capture = `{"op":10,"d":{"heartbeat_interval":41250}}
{"op":0,"t":"GUILD_CREATE","s":1,"d":{"id":"4194304","name":"one","roles":[],"channels":[{"id":"9","type":0}],"members":[{"user":{"id":"5","username":"a"},"roles":[]}]}}
{"op":0,"t":"GUILD_CREATE","s":2,"d":{"id":"8388608","name":"two","roles":[]}}
{"op":0,"t":"CHANNEL_CREATE","s":3,"d":{"guild_id":"8388608"}}
`

func replay(t *testing.T, args ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(capture), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"replay", path}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		require.NoError(t, replayCmd.Flags().Set("json", "false"))
		require.NoError(t, replayCmd.Flags().Set("shards", "1"))
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestReplayTable(t *testing.T) {
	out := replay(t, "--shards", "2")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"0/2", "1", "0", "0", "0", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1/2", "1", "0", "1", "1", "1"}, strings.Fields(lines[2]))
	assert.Equal(t, "dropped 1 messages", lines[3])
}

func TestReplayJSON(t *testing.T) {
	out := replay(t, "--json")

	var census []platform.ShardCensus
	require.NoError(t, json.Unmarshal([]byte(out), &census))
	require.Len(t, census, 1)
	assert.Equal(t, 2, census[0].Stats.Guilds)
	assert.Equal(t, 1, census[0].Stats.Members)
}
