package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p, err := New("ingest", nil)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "ingest", p.Name())
	assert.Equal(t, 16, p.Cap())

	_, err = New("bad", &Config{Capacity: 0})
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	p, err := New("test", &Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(50), counter.Load())
	assert.Equal(t, int64(50), p.Stats().Submitted)
}

func TestSubmitWithContext_Cancelled(t *testing.T) {
	p, err := New("test", &Config{Capacity: 1, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.SubmitWithContext(ctx, func(context.Context) { t.Error("should not run") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmit_Nonblocking(t *testing.T) {
	p, err := New("test", &Config{Capacity: 1, ExpiryDuration: time.Second, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	err = p.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolOverload)
	assert.Equal(t, int64(1), p.Stats().Rejected)
	close(block)
}

func TestPanicRecovered(t *testing.T) {
	recovered := make(chan any, 1)
	p, err := New("test", &Config{Capacity: 1, ExpiryDuration: time.Second, PanicHandler: func(r any) { recovered <- r }})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
	assert.Equal(t, int64(1), p.Stats().Panics)
}

func TestRelease(t *testing.T) {
	p, err := New("test", nil)
	require.NoError(t, err)

	require.NoError(t, p.ReleaseTimeout(time.Second))
	p.Release()
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}
