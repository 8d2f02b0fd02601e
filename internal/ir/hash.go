package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// DomainProgram prefixes program hashes. The version suffix allows the
// algorithm to change later.
const DomainProgram = "scp/program/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalCanonical encodes p as JSON with NFC-normalised text and without
// HTML escaping. Struct fields encode in declaration order, so equal
// programs produce equal bytes.
func MarshalCanonical(p *Program) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return norm.NFC.Bytes(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// ProgramID computes the content-addressed identity of a program. It is
// stable across compilations of equivalent sources.
func ProgramID(p *Program) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("ProgramID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// MustProgramID is like ProgramID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustProgramID(p *Program) string {
	id, err := ProgramID(p)
	if err != nil {
		panic(err)
	}
	return id
}
