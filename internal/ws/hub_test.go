package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := SubscribePayload{BuildingIDs: []string{"B-1", "B-2"}}

	msg, err := NewEnvelope(TypeSubscribe, payload)
	require.NoError(t, err)

	var env Envelope
	err = json.Unmarshal(msg, &env)
	require.NoError(t, err)

	assert.Equal(t, TypeSubscribe, env.Type)

	var parsed SubscribePayload
	err = json.Unmarshal(env.Payload, &parsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"B-1", "B-2"}, parsed.BuildingIDs)
}

func TestNewEnvelope_NoPayload(t *testing.T) {
	msg, err := NewEnvelope(TypeStatus, nil)
	require.NoError(t, err)

	var env Envelope
	err = json.Unmarshal(msg, &env)
	require.NoError(t, err)

	assert.Equal(t, TypeStatus, env.Type)
	assert.Nil(t, env.Payload)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)

	c := &Client{
		hub:  hub,
		send: make(chan []byte, 16),
	}

	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())

	// second unregister is a no-op, not a double close
	assert.NotPanics(t, func() { hub.Unregister(c) })
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(nil)

	c1 := &Client{hub: hub, send: make(chan []byte, 16)}
	c2 := &Client{hub: hub, send: make(chan []byte, 16)}

	hub.Register(c1)
	hub.Register(c2)

	msg := []byte(`{"type":"test"}`)
	hub.Broadcast("B-1", msg)

	assert.Equal(t, msg, <-c1.send)
	assert.Equal(t, msg, <-c2.send)
}

func TestHub_BroadcastHonoursSubscriptions(t *testing.T) {
	hub := NewHub(nil)

	all := &Client{hub: hub, send: make(chan []byte, 16)}
	only2 := &Client{hub: hub, send: make(chan []byte, 16)}
	only2.subscribe([]string{"B-2"})

	hub.Register(all)
	hub.Register(only2)

	hub.Broadcast("B-1", []byte("one"))
	hub.Broadcast("B-2", []byte("two"))

	assert.Len(t, all.send, 2)
	require.Len(t, only2.send, 1)
	assert.Equal(t, []byte("two"), <-only2.send)

	// dropping the last subscription goes back to receiving everything
	assert.Empty(t, only2.unsubscribe([]string{"B-2"}))
	hub.Broadcast("B-3", []byte("three"))
	assert.Equal(t, []byte("three"), <-only2.send)
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast("B-1", []byte("a"))
	hub.Broadcast("B-1", []byte("b"))

	assert.Len(t, c.send, 1)
	assert.Equal(t, []byte("a"), <-c.send)
}

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, "subscribe", TypeSubscribe)
	assert.Equal(t, "unsubscribe", TypeUnsubscribe)
	assert.Equal(t, "server:status", TypeStatus)
	assert.Equal(t, "model:trained", TypeModelTrained)
	assert.Equal(t, "forecast:ready", TypeForecastReady)
}
