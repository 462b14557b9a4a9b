package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpopts "github.com/kart-io/tutor-x/pkg/options/http"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeRunnable struct {
	name     string
	rec      *recorder
	startErr error
}

var _ Runnable = (*fakeRunnable)(nil)

func (f *fakeRunnable) Name() string { return f.name }

func (f *fakeRunnable) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.rec.add("start:" + f.name)
	return nil
}

func (f *fakeRunnable) Stop(context.Context) error {
	f.rec.add("stop:" + f.name)
	return nil
}

func TestManager_StartStopOrder(t *testing.T) {
	rec := &recorder{}
	m := NewManager(time.Second, &fakeRunnable{name: "a", rec: rec})
	m.AddServer(&fakeRunnable{name: "b", rec: rec})

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, rec.list())
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	m := NewManager(time.Second,
		&fakeRunnable{name: "a", rec: rec},
		&fakeRunnable{name: "b", rec: rec, startErr: errors.New("port in use")},
		&fakeRunnable{name: "c", rec: rec},
	)

	err := m.Start(context.Background())
	assert.ErrorContains(t, err, "failed to start server b")
	assert.Equal(t, []string{"start:a", "stop:a"}, rec.list())
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	m := NewManager(time.Second, &fakeRunnable{name: "a", rec: rec})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.list()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{"start:a", "stop:a"}, rec.list())
}

func TestHTTPServer_Serve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	s := NewHTTPServer(opts, engine)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
}
