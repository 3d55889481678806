package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// EncryptedPrefix marks encrypted values in the database
	EncryptedPrefix = "enc:v1:"

	// Key derivation parameters
	pbkdf2Iterations = 100000
	keyLength        = 32 // AES-256
	saltLength       = 16
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// SecretStore encrypts and decrypts opaque credential strings at rest.
type SecretStore struct {
	key []byte
}

// NewSecretStore creates a new secret store with a key derived from the
// configured API key. The salt must be stored persistently alongside the data.
func NewSecretStore(secret string, salt []byte) *SecretStore {
	key := pbkdf2.Key([]byte(secret), salt, pbkdf2Iterations, keyLength, sha256.New)
	return &SecretStore{key: key}
}

// GenerateSalt creates a random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Encrypt encrypts a plaintext string using AES-256-GCM.
// Returns a base64-encoded ciphertext with the EncryptedPrefix.
func (s *SecretStore) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Values without the EncryptedPrefix are returned
// as-is, so legacy plaintext rows keep working after encryption is enabled.
func (s *SecretStore) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether a stored value carries the encryption prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// Mask redacts an opaque token for logs and outbound payloads.
// Tokens of 8+ characters keep the first and last 4; shorter tokens are
// reduced to "****".
func Mask(token string) string {
	if len(token) < 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
