package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchEvent struct {
	Query string `json:"query"`
	Hits  int    `json:"hits"`
}

func TestEncodeMessages(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	earlier := now.Add(-time.Minute)
	messages, err := encodeMessages([]Event{
		{Key: "search", Value: searchEvent{Query: "part", Hits: 2}},
		{Key: "search", Value: searchEvent{Query: "is:class"}, Time: earlier},
	}, now)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, []byte("search"), messages[0].Key)
	assert.JSONEq(t, `{"query":"part","hits":2}`, string(messages[0].Value))
	assert.Equal(t, now, messages[0].Time)
	assert.Equal(t, earlier, messages[1].Time)
	assert.Equal(t, contentTypeJSON, string(messages[0].Headers[0].Value))
}

func TestEncodeMessagesRejectsUnencodable(t *testing.T) {
	_, err := encodeMessages([]Event{{Key: "bad", Value: make(chan int)}}, time.Now())
	assert.Error(t, err)
}

func TestConsumerProcess(t *testing.T) {
	var got []searchEvent
	fail := false
	c := &Consumer[searchEvent]{
		handle: func(ctx context.Context, ev searchEvent) error {
			if fail {
				return errors.New("store down")
			}
			got = append(got, ev)
			return nil
		},
		logger: slog.Default(),
	}
	ctx := context.Background()

	assert.True(t, c.process(ctx, kafka.Message{Value: []byte(`{"query":"part","hits":1}`)}))
	assert.True(t, c.process(ctx, kafka.Message{Value: []byte(`{not json`)}), "malformed messages are committed")
	fail = true
	assert.False(t, c.process(ctx, kafka.Message{Value: []byte(`{"query":"x"}`)}))

	assert.Equal(t, []searchEvent{{Query: "part", Hits: 1}}, got)
}

func TestPingWithoutBrokers(t *testing.T) {
	assert.Error(t, Ping(context.Background(), nil))
}
