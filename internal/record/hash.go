package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRecord is the domain prefix for record content hashes. The
// version suffix enables future algorithm migration without colliding
// with hashes already persisted in audit output.
const DomainRecord = "leaguevault/record/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the content identity of a record, excluding the
// given volatile fields (extraction timestamps and similar audit
// columns that differ between otherwise identical re-extractions).
//
// Two records with equal non-volatile content always produce the same
// hash; the exact-duplicate check groups on it.
func ContentHash(r Record, volatile []string) (string, error) {
	canonical, err := MarshalCanonical(r.Without(volatile))
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests with known-valid records.
func MustContentHash(r Record, volatile []string) string {
	h, err := ContentHash(r, volatile)
	if err != nil {
		panic(err)
	}
	return h
}
