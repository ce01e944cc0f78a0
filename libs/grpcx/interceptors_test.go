package grpcx

import (
	"context"
	"testing"

	"github.com/md-rashed-zaman/bookwell/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestUnaryClientRequestIDInterceptor_PrefersHTTPID(t *testing.T) {
	ctx := httpx.ContextWithRequestID(context.Background(), "http-id")
	ctx = WithRequestID(ctx, "grpc-id")

	var got []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		got = md.Get(RequestIDMetadataKey)
		return nil
	}
	if err := UnaryClientRequestIDInterceptor()(ctx, "/x", nil, nil, nil, invoker); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(got) != 1 || got[0] != "http-id" {
		t.Fatalf("unexpected metadata %v", got)
	}
}

func TestUnaryServerRequestIDInterceptor_UsesIncoming(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "abc"))
	var seen string
	_, err := UnaryServerRequestIDInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if seen != "abc" {
		t.Fatalf("expected abc, got %q", seen)
	}
}
