package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subject = subject
	c.data = data
	return c.err
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestNATSPublisherPublishesJSON(t *testing.T) {
	conn := &fakeConn{}
	p := &NATSPublisher{conn: conn, subject: "pai.notifications"}

	event := NewEvent("Done", "Build succeeded")
	event.Voice = "Samantha"
	event.VoiceEnabled = true

	require.NoError(t, p.Publish(context.Background(), event))
	assert.Equal(t, "pai.notifications", conn.subject)

	var got Event
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "Build succeeded", got.Message)
	assert.Equal(t, "Samantha", got.Voice)
	assert.True(t, got.VoiceEnabled)

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestNATSPublisherErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := &NATSPublisher{conn: conn, subject: "s"}

	err := p.Publish(context.Background(), NewEvent("t", "m"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, NewEvent("t", "m")), context.Canceled)
}

func TestNewEventIDsAreUnique(t *testing.T) {
	a, b := NewEvent("t", "m"), NewEvent("t", "m")
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
