package fingerprint

import (
	"bytes"
	"encoding/hex"
	"fmt"

	mh "github.com/multiformats/go-multihash"
	_ "github.com/multiformats/go-multihash/register/blake3"
	"lukechampine.com/blake3"
)

// Fingerprint wraps a BLAKE3 multihash of a source page image.
// Format: <0x1e><0x20><32 bytes> = 34 bytes total.
// It detects source file changes transparently: a re-imported page with
// different bytes produces a different fingerprint, so stale cache
// entries stop matching without any explicit invalidation call.
type Fingerprint []byte

// New computes the fingerprint of source page content.
func New(data []byte) (Fingerprint, error) {
	sum := blake3.Sum256(data)
	h, err := mh.Encode(sum[:], mh.BLAKE3)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fingerprint: %w", err)
	}
	return Fingerprint(h), nil
}

// Parse decodes a hex fingerprint as carried in cache keys.
func Parse(s string) (Fingerprint, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint hex: %w", err)
	}
	decoded, err := mh.Decode(mh.Multihash(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid fingerprint multihash: %w", err)
	}
	if decoded.Code != mh.BLAKE3 {
		return nil, fmt.Errorf("expected BLAKE3 fingerprint, got 0x%x", decoded.Code)
	}
	return Fingerprint(raw), nil
}

// Verify checks that the fingerprint matches the provided data.
func (f Fingerprint) Verify(data []byte) error {
	computed, err := New(data)
	if err != nil {
		return err
	}
	if !bytes.Equal(computed, f) {
		return fmt.Errorf("fingerprint mismatch")
	}
	return nil
}

// Bytes returns the raw multihash bytes.
func (f Fingerprint) Bytes() []byte {
	return []byte(f)
}

// Hex returns the hex encoding used inside cache keys.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f)
}
