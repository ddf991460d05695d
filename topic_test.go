package mqttiot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicMatchWildcards(t *testing.T) {
	cases := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"sensors/+/temp", "sensors/room1/temp", true},
		{"sensors/+/temp", "sensors/room1/room2/temp", false},
		{"sensors/#", "sensors/room1/temp", true},
		{"sensors/#", "sensors", true},
		{"sensors", "sensors", true},
		{"sensors/+", "sensors/room1/temp", false},
		{"#", "sensors/room1/temp", true},
		{"#", "$SYS/broker/clients", false},
		{"+/room1/temp", "sensors/room1/temp", true},
		{"sensors/room1/temp", "sensors/room1/humidity", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, TopicMatch(tc.filter, tc.topic), "TopicMatch(%q, %q)", tc.filter, tc.topic)
	}
}

func TestTopicMatcherSubscribeMatchUnsubscribe(t *testing.T) {
	m := NewTopicMatcher()

	require.NoError(t, m.Subscribe("sensors/+/temp", "handlerA"))
	require.NoError(t, m.Subscribe("sensors/#", "handlerB"))

	matches := m.Match("sensors/room1/temp")
	assert.Contains(t, matches, "handlerA")
	assert.Contains(t, matches, "handlerB")

	noMatches := m.Match("sensors/room1/humidity")
	assert.NotContains(t, noMatches, "handlerA")
	assert.Contains(t, noMatches, "handlerB")

	require.NoError(t, m.Unsubscribe("sensors/+/temp", "handlerA"))
	afterUnsub := m.Match("sensors/room1/temp")
	assert.NotContains(t, afterUnsub, "handlerA")
	assert.Contains(t, afterUnsub, "handlerB")
}

func TestIsSystemTopic(t *testing.T) {
	assert.True(t, IsSystemTopic("$SYS/broker/clients"))
	assert.True(t, IsSystemTopic("$SYS"))
	assert.False(t, IsSystemTopic("sensors/room1/temp"))
}
