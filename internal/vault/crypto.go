package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// #region key
// deriveKey stretches the password with PBKDF2-HMAC-SHA256.
func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, KeyLength, sha256.New)
}

// randomBytes fills n bytes from crypto/rand.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("vault: random source: %w", err)
	}
	return b, nil
}

// wipe zeroes key material in place.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// #endregion key

// #region aead
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm: %w", err)
	}
	return gcm, nil
}

// encrypt seals plaintext under a fresh salt and nonce.
func encrypt(plaintext []byte, password string, iterations int) (blob, error) {
	salt, err := randomBytes(SaltLength)
	if err != nil {
		return blob{}, err
	}
	nonce, err := randomBytes(NonceLength)
	if err != nil {
		return blob{}, err
	}
	b := blob{iterations: uint32(iterations), salt: salt, nonce: nonce}

	key := deriveKey(password, salt, iterations)
	defer wipe(key)
	gcm, err := newGCM(key)
	if err != nil {
		return blob{}, err
	}
	b.ciphertext = gcm.Seal(nil, nonce, plaintext, b.header())
	return b, nil
}

// decrypt re-derives the key from the stored salt and verifies the tag.
func decrypt(b blob, password string) ([]byte, error) {
	key := deriveKey(password, b.salt, int(b.iterations))
	defer wipe(key)
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, b.nonce, b.ciphertext, b.header())
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// #endregion aead
