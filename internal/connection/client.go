package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is the editor side of the player connection.
// Params: created with Dial.
// Returns: client bound to one player address.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// Dial connects to a player.
// Params: ctx dial context; address host:port; timeout dial timeout (0 = none); opts extra dial options.
// Returns: connected client or dial error.
func Dial(ctx context.Context, address string, timeout time.Duration, opts ...grpc.DialOption) (*Client, error) {
	dialCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Send delivers one message of the given type.
// Params: ctx rpc context; messageType UUID; payload bytes.
// Returns: rpc error.
func (c *Client) Send(ctx context.Context, messageType uuid.UUID, payload []byte) error {
	ctx = metadata.AppendToOutgoingContext(ctx, MessageTypeKey, messageType.String())
	if err := c.conn.Invoke(ctx, sendMethod, wrapperspb.Bytes(payload), new(emptypb.Empty)); err != nil {
		return fmt.Errorf("send %s: %w", messageType, err)
	}
	return nil
}

// Latest fetches the player's most recent report.
// Params: ctx rpc context.
// Returns: report struct or rpc error.
func (c *Client) Latest(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, latestMethod, new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("fetch latest report: %w", err)
	}
	return out, nil
}

// Health checks the player service status.
// Params: ctx rpc context.
// Returns: serving status or rpc error.
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
