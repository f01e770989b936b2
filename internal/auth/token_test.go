package auth

import (
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}

		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token is not unpadded URL-safe base64: %v", err)
		}
		if len(raw) != tokenByteLength {
			t.Fatalf("token carries %d bytes, want %d", len(raw), tokenByteLength)
		}
		if seen[token] {
			t.Fatal("duplicate token generated")
		}
		seen[token] = true
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("some-token")
	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		t.Fatalf("hash is not hex: %v", err)
	}
	if hash != HashToken("some-token") {
		t.Fatal("hashing is not deterministic")
	}
	if hash == HashToken("other-token") {
		t.Fatal("different tokens share a hash")
	}
}
