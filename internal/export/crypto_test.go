package export

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(a) != saltSize {
		t.Errorf("salt length = %d, want %d", len(a), saltSize)
	}
	b, _ := GenerateSalt()
	if bytes.Equal(a, b) {
		t.Error("two salts should differ")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, saltSize)
	k1 := DeriveKey("passphrase", salt)
	k2 := DeriveKey("passphrase", salt)
	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase and salt should derive the same key")
	}
	if len(k1) != keySize {
		t.Errorf("key length = %d, want %d", len(k1), keySize)
	}
	if bytes.Equal(k1, DeriveKey("other", salt)) {
		t.Error("different passphrases should derive different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte(`{"id":"ARC-20240305-001","title":"Snapshot A"}`)

	encrypted, err := Encrypt(original, "test-passphrase-123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, original) {
		t.Error("encrypted content should not contain the plaintext")
	}

	decrypted, err := Decrypt(encrypted, "test-passphrase-123")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(original, decrypted) {
		t.Error("decrypted content should match original")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, _ := Encrypt([]byte("secret"), "right")
	if _, err := Decrypt(encrypted, "wrong"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	encrypted, _ := Encrypt([]byte("secret archive"), "pass")
	encrypted[len(encrypted)-1] ^= 0xff
	if _, err := Decrypt(encrypted, "pass"); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
}

func TestEncryptDecryptEmpty(t *testing.T) {
	encrypted, err := Encrypt(nil, "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	decrypted, err := Decrypt(encrypted, "pass")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if len(decrypted) != 0 {
		t.Errorf("decrypted = %q, want empty", decrypted)
	}
}

func TestDecryptTooSmall(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "pass"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("err = %v, want ErrCiphertextTooShort", err)
	}
}
