package topics

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/nfrund/evmarket/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredTopics(t *testing.T) {
	list := pubsub.DefaultRegistry().List()

	var names []string
	for _, info := range list {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "chat.message.created")
	assert.Contains(t, names, "hub.connection.opened")
	assert.Contains(t, names, "hub.connection.closed")
	assert.Contains(t, names, "presence.user.online")
	assert.Contains(t, names, "presence.user.offline")

	chat := Filter(list, "chat")
	require.Len(t, chat, 1)
	assert.Equal(t, "chat.message.created", chat[0].Name)
}

func TestDisplay(t *testing.T) {
	list := Filter(pubsub.DefaultRegistry().List(), "hub")

	var table bytes.Buffer
	require.NoError(t, Display(&table, "table", list))
	assert.Contains(t, table.String(), "hub.connection.opened")

	var out bytes.Buffer
	require.NoError(t, Display(&out, "json", list))
	var decoded struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Count)

	assert.Error(t, Display(&out, "yaml", list))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
