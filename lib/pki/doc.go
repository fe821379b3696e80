// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

// Package pki creates the X.509 material behind the client's mutual
// TLS identity.
//
// During recovery and registration the client generates a fresh ECDSA
// P-256 device key, wraps it in a certificate signing request whose
// common name is the node id, and sends the request to the scheduler,
// which returns a signed device certificate. [NewDeviceKey] and
// [DeviceKey.CSR] do the client half.
//
// [Authority] does the scheduler half, in process. The in-memory
// scheduler and node doubles use it to issue device and server
// certificates, so tests exercise real TLS handshakes end to end.
//
// All encodings are PEM.
package pki
