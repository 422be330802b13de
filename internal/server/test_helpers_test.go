package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"meme-party/internal/config"
	"meme-party/internal/game"
)

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

type testApp struct {
	engine *game.Engine
	hub    *Hub
	srv    *Server
	ts     *httptest.Server
}

// newTestApp runs a full stack over the memory store. Phase durations stay
// at their defaults so no deadline fires while a test is running.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := config.Default()
	hub := NewHub()
	catalog := game.NewStaticCatalog([]game.Template{
		{Name: "drake", ImageURL: "https://img.example/drake.png", Slots: 2},
		{Name: "distracted", Slots: 3},
	}, 0, 11)
	engine, err := game.NewEngine(game.NewMemoryStore(), game.Options{
		Strategy: game.StrategyTimer,
		Catalog:  catalog,
		Notifier: hub,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	srv := New(engine, hub, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() {
		_ = engine.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		_ = hub.Run(ctx)
		done <- struct{}{}
	}()

	ts := newTestServer(t, srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		<-done
	})
	return &testApp{engine: engine, hub: hub, srv: srv, ts: ts}
}
