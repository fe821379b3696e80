// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// bufconnSize is the in-memory listener buffer.
const bufconnSize = 1 << 20

// ServeGRPC starts a gRPC server on an in-memory listener, lets
// register add services, and stops the server when the test ends. It
// returns a dial function for transport.DialerFunc.
func ServeGRPC(t testing.TB, register func(*grpc.Server), options ...grpc.ServerOption) func(context.Context, string) (net.Conn, error) {
	t.Helper()

	listener := bufconn.Listen(bufconnSize)
	server := grpc.NewServer(options...)
	register(server)

	served := make(chan struct{})
	go func() {
		defer close(served)
		server.Serve(listener)
	}()
	t.Cleanup(func() {
		server.Stop()
		<-served
	})

	return func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
}
