package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix leaves room for a future algorithm change.
const (
	DomainPayload = "rfsync/payload/v1"
	DomainRequest = "rfsync/request/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadHash returns a stable digest of a flattened id or version payload.
// It is used for log correlation; payloads themselves never leave the server
// unencoded.
func PayloadHash(payload []byte) string {
	return hashWithDomain(DomainPayload, payload)
}

// RequestHash computes a digest of a request message over its canonical
// JSON form. Two requests that differ only in key order hash the same.
func RequestHash(req RequestMessage) (string, error) {
	obj, err := req.toIRObject()
	if err != nil {
		return "", fmt.Errorf("RequestHash: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RequestHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRequest, canonical), nil
}

// MustRequestHash is like RequestHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRequestHash(req RequestMessage) string {
	h, err := RequestHash(req)
	if err != nil {
		panic(err)
	}
	return h
}
