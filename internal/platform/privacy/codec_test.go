package privacy

import (
	"bytes"
	"strings"
	"testing"
)

func TestAESCodec_RoundTrip(t *testing.T) {
	codec, err := NewAESCodec(bytes.Repeat([]byte{0x2a}, 32))
	if err != nil {
		t.Fatalf("NewAESCodec() error: %v", err)
	}

	stored, err := codec.Encode("hola doctor")
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if stored == "hola doctor" {
		t.Fatal("stored form must not equal the plaintext")
	}

	got, err := codec.Decode(stored)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got != "hola doctor" {
		t.Errorf("round trip mismatch: got %q", got)
	}
}

func TestAESCodec_NonceVaries(t *testing.T) {
	codec, _ := NewAESCodec(bytes.Repeat([]byte{0x2a}, 32))

	a, _ := codec.Encode("same content")
	b, _ := codec.Encode("same content")
	if a == b {
		t.Error("two encodings of the same plaintext must differ (random nonce)")
	}
}

func TestAESCodec_RejectsBadKeyAndCiphertext(t *testing.T) {
	if _, err := NewAESCodec([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}

	codec, _ := NewAESCodec(bytes.Repeat([]byte{0x01}, 32))
	if _, err := codec.Decode("not base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := codec.Decode("YWJj"); err == nil {
		t.Error("expected error for truncated ciphertext")
	}

	other, _ := NewAESCodec(bytes.Repeat([]byte{0x02}, 32))
	stored, _ := codec.Encode("secret")
	if _, err := other.Decode(stored); err == nil {
		t.Error("expected decryption failure with a different key")
	}
}

func TestNewAESCodecFromHex(t *testing.T) {
	if _, err := NewAESCodecFromHex(strings.Repeat("ab", 32)); err != nil {
		t.Errorf("unexpected error for valid hex key: %v", err)
	}
	if _, err := NewAESCodecFromHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	if Fingerprint("hello") != Fingerprint("hello") {
		t.Error("fingerprint must be deterministic")
	}
	if Fingerprint("hello") == Fingerprint("world") {
		t.Error("distinct content must fingerprint differently")
	}
	if len(Fingerprint("x")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Fingerprint("x")))
	}
}

func TestPlainCodec_PassThrough(t *testing.T) {
	var codec Codec = PlainCodec{}
	stored, err := codec.Encode("visible")
	if err != nil || stored != "visible" {
		t.Fatalf("expected pass-through, got %q, %v", stored, err)
	}
	got, err := codec.Decode(stored)
	if err != nil || got != "visible" {
		t.Fatalf("expected pass-through decode, got %q, %v", got, err)
	}
}
