package fingerprint

import "testing"

func TestNewAndVerify(t *testing.T) {
	data := []byte("page image bytes")

	fp, err := New(data)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if len(fp) != 34 {
		t.Errorf("Expected multihash length 34, got %d", len(fp))
	}

	if err := fp.Verify(data); err != nil {
		t.Errorf("Verify failed on matching data: %v", err)
	}

	if err := fp.Verify([]byte("different bytes")); err == nil {
		t.Error("Expected verification failure for changed data")
	}
}

func TestParseRoundTrip(t *testing.T) {
	fp, err := New([]byte("source page"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	parsed, err := Parse(fp.Hex())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if parsed.Hex() != fp.Hex() {
		t.Errorf("Round trip mismatch: %s != %s", parsed.Hex(), fp.Hex())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not hex"); err == nil {
		t.Error("Expected error for non-hex input")
	}
	if _, err := Parse("abcd"); err == nil {
		t.Error("Expected error for truncated multihash")
	}
}

func TestDeterministic(t *testing.T) {
	a, err := New([]byte("same content"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := New([]byte("same content"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if a.Hex() != b.Hex() {
		t.Error("Same content produced different fingerprints")
	}
}
