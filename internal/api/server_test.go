package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalancer/pkg/config"
	"github.com/wonny/rebalancer/pkg/logger"
)

func testServerConfig() *config.Config {
	return &config.Config{
		Port: "0",
		Env:  "development",
		HTTP: config.HTTPConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    3 * time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
		},
	}
}

func TestNew_AppliesConfig(t *testing.T) {
	cfg := testServerConfig()
	s := New(cfg, logger.Nop(), http.NotFoundHandler())

	assert.Equal(t, ":0", s.httpServer.Addr)
	assert.Equal(t, time.Second, s.httpServer.ReadTimeout)
	assert.Equal(t, 3*time.Second, s.httpServer.WriteTimeout)
	assert.Equal(t, time.Second, s.httpServer.IdleTimeout)
}

func TestServer_ServeUntilCanceled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(testServerConfig(), logger.Nop(), NewRouter(nil, nil, logger.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
