// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is glalby's single CBOR configuration.
//
// Two things are encoded as CBOR: the credential envelope that the
// host persists between runs, and every message on the scheduler and
// node gRPC connections (the transport package registers this codec
// with gRPC under the content-subtype "cbor"). Both sides of both
// boundaries must agree byte-for-byte, so encoding always uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, shortest
// integers, no indefinite lengths.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// [UnmarshalStrict] additionally rejects unknown fields and duplicate
// map keys. The credential envelope uses it so that a blob from a
// different producer fails loudly instead of decoding to zero values.
//
// Types tagged `cbor` are wire-only. Types tagged `json` are also
// printed by the CLI; fxamacker/cbor falls back to `json` tags when no
// `cbor` tag is present, so one tag set serves both.
package codec
