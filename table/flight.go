package table

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FlightSource loads one table from an Arrow Flight endpoint and wraps it
// as a Store. The ticket is passed to DoGet as-is; all streamed batches are
// concatenated into a Local table keyed by key. Reference servers that
// publish gene and interaction tables over Flight can be consumed directly
// this way instead of via file resources.
//
// The connection is insecure by default, which matches how intra-cluster
// Flight endpoints are typically exposed; pass transport credentials in
// opts to override.
func FlightSource(ctx context.Context, name, addr string, ticket []byte, key Key, opts ...grpc.DialOption) (*Store, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	client, err := flight.NewClientWithMiddleware(addr, nil, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("flight dial %s: %w", addr, err)
	}
	defer client.Close()

	stream, err := client.DoGet(ctx, &flight.Ticket{Ticket: ticket})
	if err != nil {
		return nil, fmt.Errorf("flight DoGet %s: %w", addr, err)
	}
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("flight record reader %s: %w", addr, err)
	}
	defer rdr.Release()

	var out *Local
	for rdr.Next() {
		rec := rdr.RecordBatch()
		if out == nil {
			out, err = FromRecordBatch(rec, key)
			if err != nil {
				return nil, fmt.Errorf("flight batch from %s: %w", addr, err)
			}
			continue
		}
		if err := out.AppendRecordBatch(rec); err != nil {
			return nil, fmt.Errorf("flight batch from %s: %w", addr, err)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("flight stream %s: %w", addr, err)
	}
	if out == nil {
		out = NewLocal(key)
	}
	return NewStore(name, out), nil
}

type bearerCreds struct {
	token string
}

func (b bearerCreds) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool {
	return false
}

// WithBearerToken returns a dial option that attaches a bearer token to
// every RPC, for Flight endpoints behind token authentication.
func WithBearerToken(token string) grpc.DialOption {
	return grpc.WithPerRPCCredentials(bearerCreds{token: token})
}
