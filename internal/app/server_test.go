package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/config"
)

var testHTTPConfig = config.HTTPConfig{
	ReadTimeout:     time.Second,
	WriteTimeout:    time.Second,
	ShutdownTimeout: time.Second,
}

func TestServer_StopsOnContextCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), testHTTPConfig, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(ln.Addr().String(), http.NotFoundHandler(), testHTTPConfig, nil)

	err = srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen and serve")
}
