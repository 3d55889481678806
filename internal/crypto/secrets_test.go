package crypto

import "testing"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	store := NewSecretStore("test-api-key", salt)

	enc, err := store.Encrypt("plex-token-abcdef123456")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !IsEncrypted(enc) {
		t.Fatalf("expected encrypted prefix, got %q", enc)
	}

	dec, err := store.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec != "plex-token-abcdef123456" {
		t.Errorf("round trip mismatch: %q", dec)
	}
}

func TestDecryptPassesThroughPlaintext(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("k", salt)

	got, err := store.Decrypt("legacy-plaintext-token")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "legacy-plaintext-token" {
		t.Errorf("plaintext changed: %q", got)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	salt, _ := GenerateSalt()
	store := NewSecretStore("right", salt)
	enc, _ := store.Encrypt("secret")

	other := NewSecretStore("wrong", salt)
	if _, err := other.Decrypt(enc); err == nil {
		t.Error("expected decryption failure with wrong key")
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "****"},
		{"short", "****"},
		{"1234567", "****"},
		{"12345678", "1234****5678"},
		{"plex-token-abcdef123456", "plex****3456"},
	}

	for _, tt := range tests {
		if got := Mask(tt.token); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}
