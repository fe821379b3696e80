// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/glalby/glalby/credential"
)

// Identity is the client side of mutual TLS with a node.
type Identity struct {
	Certificate tls.Certificate

	// RootCAs verifies the node. Nil means the system roots.
	RootCAs *x509.CertPool

	// ServerName overrides the name checked against the node
	// certificate. Empty means the host part of the dial target.
	ServerName string
}

// NewIdentity builds an Identity from decoded trust material.
func NewIdentity(material *credential.TrustMaterial) (*Identity, error) {
	certificate, err := tls.X509KeyPair(material.DeviceCert, material.DeviceKey)
	if err != nil {
		return nil, fmt.Errorf("loading device certificate: %w", err)
	}

	identity := &Identity{Certificate: certificate}
	if len(material.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(material.CACert) {
			return nil, fmt.Errorf("CA certificate contains no usable PEM certificates")
		}
		identity.RootCAs = pool
	}
	return identity, nil
}

// TLSConfig returns a client configuration presenting the device
// certificate.
func (i *Identity) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{i.Certificate},
		RootCAs:      i.RootCAs,
		ServerName:   i.ServerName,
	}
}

// ServerAuthConfig returns a client configuration that verifies the
// server against rootCAs and presents no certificate.
func ServerAuthConfig(rootCAs *x509.CertPool, serverName string) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootCAs,
		ServerName: serverName,
	}
}

// LoadRootCAs reads a PEM bundle into a pool. An empty bundle is an
// error.
func LoadRootCAs(pemBundle []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBundle) {
		return nil, fmt.Errorf("no usable PEM certificates in CA bundle")
	}
	return pool, nil
}
