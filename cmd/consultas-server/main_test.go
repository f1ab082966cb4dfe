package main

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/consultas/consultas/internal/config"
	"github.com/consultas/consultas/internal/platform/privacy"
)

func TestContentCodecWithoutKey(t *testing.T) {
	codec, err := contentCodec(&config.Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("contentCodec: %v", err)
	}
	if _, ok := codec.(privacy.PlainCodec); !ok {
		t.Errorf("codec = %T, want PlainCodec when no key is configured", codec)
	}
}

func TestContentCodecWithKey(t *testing.T) {
	key := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	codec, err := contentCodec(&config.Config{ContentKey: key}, zerolog.Nop())
	if err != nil {
		t.Fatalf("contentCodec: %v", err)
	}
	if _, ok := codec.(*privacy.AESCodec); !ok {
		t.Errorf("codec = %T, want AESCodec", codec)
	}

	stored, err := codec.Encode("hola")
	if err != nil {
		t.Fatal(err)
	}
	if stored == "hola" {
		t.Error("content must not be stored as plaintext")
	}
	plain, err := codec.Decode(stored)
	if err != nil || plain != "hola" {
		t.Errorf("Decode = %q, %v", plain, err)
	}
}

func TestContentCodecRejectsBadKey(t *testing.T) {
	if _, err := contentCodec(&config.Config{ContentKey: "deadbeef"}, zerolog.Nop()); err == nil {
		t.Error("short key should be rejected")
	}
}
