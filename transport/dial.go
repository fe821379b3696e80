// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/glalby/glalby/lib/version"
)

// Dialer opens the raw connection under a gRPC channel.
type Dialer interface {
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return f(ctx, address)
}

// TCPDialer dials host:port over TCP.
type TCPDialer struct {
	// Timeout bounds connection setup. Zero leaves only the context
	// deadline.
	Timeout time.Duration
}

func (d TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}

// DialConfig describes one outbound gRPC channel.
type DialConfig struct {
	// Target is host:port, or any gRPC target URI.
	Target string

	// TLS secures the channel. Nil requires Insecure.
	TLS *tls.Config

	// Insecure allows a plaintext channel. Only in-process tests set
	// it.
	Insecure bool

	// Dialer defaults to TCPDialer.
	Dialer Dialer

	// Rune, when set, is attached to every call as metadata.
	Rune string
}

// Dial creates a gRPC client channel. gRPC connects lazily, so errors
// here are configuration errors; network failures surface on the
// first call.
func Dial(config DialConfig) (*grpc.ClientConn, error) {
	if config.Target == "" {
		return nil, fmt.Errorf("dial target is empty")
	}

	var transportCredentials credentials.TransportCredentials
	switch {
	case config.TLS != nil:
		transportCredentials = credentials.NewTLS(config.TLS)
	case config.Insecure:
		transportCredentials = insecure.NewCredentials()
	default:
		return nil, fmt.Errorf("dialing %s: no TLS configuration", config.Target)
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = TCPDialer{}
	}

	options := []grpc.DialOption{
		grpc.WithTransportCredentials(transportCredentials),
		grpc.WithContextDialer(dialer.DialContext),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithUserAgent(version.UserAgent()),
	}
	if config.Rune != "" {
		options = append(options, grpc.WithPerRPCCredentials(runeCredentials{
			rune:       config.Rune,
			requireTLS: !config.Insecure,
		}))
	}

	conn, err := grpc.NewClient(config.Target, options...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", config.Target, err)
	}
	return conn, nil
}

// RuneMetadataKey carries the rune on node calls.
const RuneMetadataKey = "glalby-rune"

// runeCredentials attaches the rune to every call.
type runeCredentials struct {
	rune       string
	requireTLS bool
}

func (r runeCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{RuneMetadataKey: r.rune}, nil
}

func (r runeCredentials) RequireTransportSecurity() bool {
	return r.requireTLS
}

// TargetFromURI converts a node URI such as "https://host:port" to a
// dial target. A bare host:port is returned unchanged.
func TargetFromURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("node URI is empty")
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parsing node URI: %w", err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("node URI %q has no host", uri)
	}
	if parsed.Port() == "" {
		return "", fmt.Errorf("node URI %q has no port", uri)
	}
	return parsed.Host, nil
}

// Passthrough returns a target that hands address to the Dialer
// unresolved, so name resolution happens in the dialer.
func Passthrough(address string) string {
	return "passthrough:///" + address
}
