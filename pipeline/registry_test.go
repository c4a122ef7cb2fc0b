package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/errors"
	"github.com/ezex-io/actorfiber/spawn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLocate(t *testing.T) {
	r := NewRegistry()
	p := New(channel.New(1))
	require.NoError(t, p.Open(t.Context()))
	_, _ = p.root.Receive(t.Context())

	require.NoError(t, r.Register(p))

	got, ok := r.Locate(p.Name())
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	p := New(channel.New(1))
	require.NoError(t, p.Open(t.Context()))
	_, _ = p.root.Receive(t.Context())

	require.NoError(t, r.Register(p))

	err := r.Register(p)
	assert.ErrorIs(t, err, errors.ErrPipelineNameTaken)
}

func TestRegistryRejectsClosedPipeline(t *testing.T) {
	r := NewRegistry()
	p := New(channel.New(1))
	require.NoError(t, p.Open(t.Context()))
	_, _ = p.root.Receive(t.Context())
	p.Close(t.Context())

	err := r.Register(p)
	assert.ErrorIs(t, err, errors.ErrPipelineClosed)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	p := New(channel.New(1))
	require.NoError(t, p.Open(t.Context()))
	_, _ = p.root.Receive(t.Context())
	require.NoError(t, r.Register(p))

	require.NoError(t, r.Unregister(p))

	_, ok := r.Locate(p.Name())
	assert.False(t, ok)
}

func TestRegistryUnregisterUnknownFails(t *testing.T) {
	r := NewRegistry()
	p := New(channel.New(1))

	err := r.Unregister(p)
	assert.ErrorIs(t, err, errors.ErrPipelineNameNotFound)
}

func TestDefaultRegistryIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestLocateCurrentResolvesByThreadName(t *testing.T) {
	r := NewRegistry()
	registered := make(chan *Pipeline, 1)
	located := make(chan *Pipeline, 1)

	spawn.Thread(context.Background(), func(ctx context.Context, self *channel.Channel) {
		p := New(self, WithName("pipeline-owner"))
		require.NoError(t, p.Open(ctx))
		require.NoError(t, r.Register(p))
		registered <- p

		got, ok := r.LocateCurrent(ctx)
		if ok {
			located <- got
		} else {
			located <- nil
		}
	}, spawn.WithName("pipeline-owner"))

	p := <-registered
	got := <-located
	require.NotNil(t, got, "LocateCurrent should resolve the pipeline registered under the thread's own name")
	assert.Same(t, p, got)
	assert.Equal(t, "pipeline-owner", p.Name())
}

func TestLocateCurrentFailsWithoutThreadName(t *testing.T) {
	r := NewRegistry()

	_, ok := r.LocateCurrent(context.Background())
	assert.False(t, ok)

	_, ok = r.LocateCurrent(t.Context())
	assert.False(t, ok)
}

func TestLocateCurrentFailsWhenNoPipelineRegisteredUnderThreadName(t *testing.T) {
	r := NewRegistry()
	done := make(chan bool, 1)

	spawn.Thread(context.Background(), func(ctx context.Context, self *channel.Channel) {
		_, ok := r.LocateCurrent(ctx)
		done <- ok
	}, spawn.WithName("unregistered-thread"))

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("spawned thread never ran")
	}
}
