// Copyright 2026 The Glalby Authors
// SPDX-License-Identifier: Apache-2.0

package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
)

// DeviceKey is a freshly generated device private key.
type DeviceKey struct {
	key *ecdsa.PrivateKey
}

// NewDeviceKey generates a P-256 key.
func NewDeviceKey() (*DeviceKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating device key: %w", err)
	}
	return &DeviceKey{key: key}, nil
}

// PEM returns the key as a PKCS#8 "PRIVATE KEY" block.
func (d *DeviceKey) PEM() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(d.key)
	if err != nil {
		return nil, fmt.Errorf("encoding device key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// CSR returns a PEM certificate request for commonName, normally the
// hex node id.
func (d *DeviceKey) CSR(commonName string) ([]byte, error) {
	template := &x509.CertificateRequest{
		Subject: pkix.Name{CommonName: commonName, Organization: []string{"glalby device"}},
	}
	der, err := x509.CreateCertificateRequest(rand.Reader, template, d.key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate request: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der}), nil
}

// ParseCSR decodes and verifies the self-signature of a PEM
// certificate request.
func ParseCSR(csrPEM []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(csrPEM)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return nil, fmt.Errorf("no CERTIFICATE REQUEST block in input")
	}
	request, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate request: %w", err)
	}
	if err := request.CheckSignature(); err != nil {
		return nil, fmt.Errorf("certificate request signature: %w", err)
	}
	return request, nil
}
