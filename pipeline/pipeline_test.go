package pipeline

import (
	"testing"
	"time"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/envelope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsClosedUntilOpen(t *testing.T) {
	root := channel.New(4)
	p := New(root)

	assert.True(t, p.IsClosed())
}

func TestOpenSendsCreatePipeAndFlipsClosed(t *testing.T) {
	root := channel.New(4)
	p := New(root)

	require.NoError(t, p.Open(t.Context()))
	assert.False(t, p.IsClosed())

	msg, err := root.Receive(t.Context())
	require.NoError(t, err)
	assert.Equal(t, envelope.KindCreatePipe, msg.Kind)
	assert.Same(t, p, msg.CreatePipe.Pipeline)
}

func TestOpenTwiceIsProgrammerError(t *testing.T) {
	root := channel.New(4)
	p := New(root)
	require.NoError(t, p.Open(t.Context()))

	assert.Panics(t, func() {
		_ = p.Open(t.Context())
	})
}

func TestCloseSendsDestroyPipeAndInvokesOnClose(t *testing.T) {
	root := channel.New(4)
	var closed bool

	p := New(root, WithOnClose(func() { closed = true }))
	require.NoError(t, p.Open(t.Context()))
	_, _ = root.Receive(t.Context())

	p.Close(t.Context())

	assert.True(t, p.IsClosed())
	assert.True(t, closed)

	msg, err := p.consumer.Receive(t.Context())
	require.NoError(t, err)
	assert.Equal(t, envelope.KindDestroyPipe, msg.Kind)
}

func TestCloseIsIdempotent(t *testing.T) {
	root := channel.New(4)
	calls := 0

	p := New(root, WithOnClose(func() { calls++ }))
	require.NoError(t, p.Open(t.Context()))
	_, _ = root.Receive(t.Context())

	p.Close(t.Context())
	p.Close(t.Context())

	assert.Equal(t, 1, calls)
}

func TestQueryMatchesResponseByID(t *testing.T) {
	root := channel.New(4)
	p := New(root)
	require.NoError(t, p.Open(t.Context()))
	_, _ = root.Receive(t.Context())

	id := NextID()
	cmd := envelope.Command{Sender: p, ID: id, Method: "Ping", Args: ""}

	go func() {
		req, err := p.consumer.Receive(t.Context())
		require.NoError(t, err)
		require.Equal(t, id, req.Command.ID)

		require.NoError(t, p.Reply(t.Context(), envelope.Response{Status: envelope.StatusSuccess, ID: id, Data: "pong"}))
	}()

	resp := p.Query(t.Context(), cmd, time.Second)
	assert.Equal(t, envelope.StatusSuccess, resp.Status)
	assert.Equal(t, "pong", resp.Data)
}

func TestQueryDiscardsStaleResponsesBeforeMatch(t *testing.T) {
	root := channel.New(4)
	p := New(root)
	require.NoError(t, p.Open(t.Context()))
	_, _ = root.Receive(t.Context())

	id := NextID()
	cmd := envelope.Command{Sender: p, ID: id, Method: "Ping", Args: ""}

	go func() {
		_, err := p.consumer.Receive(t.Context())
		require.NoError(t, err)

		require.NoError(t, p.producer.Send(t.Context(), envelope.NewResponse(envelope.StatusSuccess, id+999, "stale")))
		require.NoError(t, p.Reply(t.Context(), envelope.Response{Status: envelope.StatusSuccess, ID: id, Data: "fresh"}))
	}()

	resp := p.Query(t.Context(), cmd, time.Second)
	assert.Equal(t, "fresh", resp.Data)
}

func TestQueryTimesOutWithoutClosingPipeline(t *testing.T) {
	root := channel.New(4)
	p := New(root)
	require.NoError(t, p.Open(t.Context()))
	_, _ = root.Receive(t.Context())

	id := NextID()
	cmd := envelope.Command{Sender: p, ID: id, Method: "Ping", Args: ""}

	go func() {
		_, _ = p.consumer.Receive(t.Context())
	}()

	resp := p.Query(t.Context(), cmd, 20*time.Millisecond)
	assert.Equal(t, envelope.StatusTimeout, resp.Status)
	assert.False(t, p.IsClosed())
}

func TestQueryOnClosedPipelinePanics(t *testing.T) {
	root := channel.New(4)
	p := New(root)

	assert.Panics(t, func() {
		p.Query(t.Context(), envelope.Command{ID: 1}, time.Second)
	})
}

func TestQueryWhileBusyPanics(t *testing.T) {
	root := channel.New(4)
	p := New(root)
	require.NoError(t, p.Open(t.Context()))
	_, _ = root.Receive(t.Context())

	p.mu.Lock()
	p.busy = true
	p.mu.Unlock()

	assert.Panics(t, func() {
		p.Query(t.Context(), envelope.Command{ID: 1}, time.Second)
	})
}

func TestReplyOnClosedPipelinePanics(t *testing.T) {
	root := channel.New(4)
	p := New(root)

	assert.Panics(t, func() {
		_ = p.Reply(t.Context(), envelope.Response{ID: 1})
	})
}

func TestSetClosingSoon(t *testing.T) {
	root := channel.New(4)
	p := New(root)

	assert.False(t, p.IsClosingSoon())
	p.SetClosingSoon(true)
	assert.True(t, p.IsClosingSoon())
}

func TestNextIDIsMonotonic(t *testing.T) {
	a := NextID()
	b := NextID()
	assert.Less(t, a, b)
}
