package grpcledger

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jcmexdev/shoe-market/internal/ledger"
	"github.com/jcmexdev/shoe-market/internal/ledger/memledger"
	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors"
)

func newTestClient(t *testing.T, backend Backend) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptors.TraceServerInterceptor()))
	RegisterLedgerServer(srv, NewServer(backend))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(interceptors.PropagateClientInterceptor()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn)
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, memledger.New())

	const memo = ^uint64(0) - 12345
	idx, err := client.Transfer(ctx, "buyer", "seller", 500, memo)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), idx)

	blocks, err := client.QueryBlocks(ctx, idx, 1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, uint64(memo), blocks[0].Memo)
	require.NotNil(t, blocks[0].Transfer)
	assert.Equal(t, ledger.DefaultAddress("buyer"), blocks[0].Transfer.From)
	assert.Equal(t, ledger.DefaultAddress("seller"), blocks[0].Transfer.To)
	assert.Equal(t, uint64(500), blocks[0].Transfer.Amount)

	empty, err := client.QueryBlocks(ctx, 99, 1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClient_VerifierOverGRPC(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, memledger.New())

	idx, err := client.Transfer(ctx, "buyer", "seller", 500, 42)
	require.NoError(t, err)

	v := ledger.NewVerifier(client)
	ok, err := v.Verify(ctx, "buyer", "seller", 500, idx, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(ctx, "buyer", "seller", 500, idx, 43)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServer_RejectsBadRequests(t *testing.T) {
	client := newTestClient(t, memledger.New())

	_, err := client.Transfer(context.Background(), "", "seller", 1, 1)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Transfer(context.Background(), "buyer", "seller", 0, 1)
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
