package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/config"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := New(&config.Config{Port: "0", Env: "test"}, logger.Nop(), http.NotFoundHandler())
	assert.Equal(t, ":0", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
