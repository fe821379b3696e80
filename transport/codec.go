// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"google.golang.org/grpc/encoding"

	"github.com/glalby/glalby/lib/codec"
)

// CodecName is the gRPC content-subtype for CBOR messages.
const CodecName = "cbor"

func init() {
	encoding.RegisterCodec(cborCodec{})
}

// cborCodec adapts lib/codec to gRPC.
type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) { return codec.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return codec.Unmarshal(data, v) }

func (cborCodec) Name() string { return CodecName }
