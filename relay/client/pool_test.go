package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/testing/assert"
	"github.com/dlt-interop/relay/testing/require"
	"google.golang.org/grpc"
)

func TestPool_DialTimeoutBoundsEstablishment(t *testing.T) {
	p, err := newPool(300 * time.Millisecond)
	require.NoError(t, err)
	defer p.close()

	// Nothing listens on the discard port; the dial must fail within
	// the configured timeout instead of returning a lazy connection.
	start := time.Now()
	_, err = p.get(context.Background(), config.Location{Hostname: "127.0.0.1", Port: "1"})
	require.NotNil(t, err)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("dial took %v, want it bounded by the dial timeout", elapsed)
	}
}

func TestPool_ReusesConnectionPerEndpoint(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	host, port, err := net.SplitHostPort(lis.Addr().String())
	require.NoError(t, err)
	loc := config.Location{Hostname: host, Port: port}

	p, err := newPool(DefaultDialTimeout)
	require.NoError(t, err)
	defer p.close()

	first, err := p.get(context.Background(), loc)
	require.NoError(t, err)
	second, err := p.get(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, first, second, "Same endpoint must share one connection")
}
