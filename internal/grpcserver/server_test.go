package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"caisse-system/internal/gateway/clients"
)

func TestRefreshFollowsProbes(t *testing.T) {
	var dbErr error
	s := New(nil, map[string]Probe{
		"database": func(context.Context) error { return dbErr },
	})

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Refresh(context.Background()))
	dbErr = errors.New("down")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Refresh(context.Background()))
}

func TestHealthOverTheWire(t *testing.T) {
	s := New(nil, nil)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.GRPC.Serve(lis)
	t.Cleanup(s.Shutdown)

	client, err := clients.NewHealthClient(lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	ctx := context.Background()
	assert.Equal(t, "NOT_SERVING", client.Status(ctx, ServiceName))
	s.Refresh(ctx)
	assert.Equal(t, "SERVING", client.Status(ctx, ServiceName))
	assert.Equal(t, "UNAVAILABLE", client.Status(ctx, "unknown"))
}
