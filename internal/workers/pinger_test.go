package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teamdevhq/media-relay/internal/config"
)

func TestPingerHitsLivenessEndpoint(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			hits.Add(1)
		}
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	cfg := &config.Config{
		SelfURL:      srv.URL,
		PingInterval: 10 * time.Millisecond,
		PingTimeout:  time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPinger(cfg).Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return hits.Load() >= 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pinger did not stop after context cancellation")
	}

	settled := hits.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, hits.Load(), "no pings after cancellation")
}

func TestPingerSurvivesUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := &config.Config{
		SelfURL:      srv.URL,
		PingInterval: 10 * time.Millisecond,
		PingTimeout:  time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewPinger(cfg).Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pinger did not stop after context cancellation")
	}
}
