package clients

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthClient asks the ledger gRPC service for its serving status.
type HealthClient struct {
	Health healthpb.HealthClient
	conn   *grpc.ClientConn
}

func NewHealthClient(addr string) (*HealthClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("ledger service connection failed: %w", err)
	}
	return &HealthClient{
		Health: healthpb.NewHealthClient(conn),
		conn:   conn,
	}, nil
}

// Status returns the serving status name for service, or "UNAVAILABLE" when
// the call fails.
func (c *HealthClient) Status(ctx context.Context, service string) string {
	if c == nil || c.Health == nil {
		return "UNAVAILABLE"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "UNAVAILABLE"
	}
	return resp.GetStatus().String()
}

func (c *HealthClient) Close() {
	if c != nil && c.conn != nil {
		c.conn.Close()
	}
}
