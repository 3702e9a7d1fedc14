// Package vault encrypts and persists per-user, per-provider access tokens.
//
// THREAT MODEL:
// The database file may leak (backup, misconfigured volume, stolen disk)
// without leaking GitHub tokens. Tokens are therefore encrypted at rest
// with AES-256-GCM — an AUTHENTICATED cipher, so a tampered record is
// detected rather than decrypted into garbage.
//
// CIPHERTEXT LAYOUT (base64-encoded before storage):
//
//	nonce (12 bytes) ‖ auth tag (16 bytes) ‖ encrypted payload
//
// A fresh random nonce is generated per Store call. Reusing a GCM nonce
// under the same key breaks the scheme entirely, which is why the nonce
// comes from crypto/rand and never from a counter we could mismanage.
//
// KEY DERIVATION:
// The operator supplies a secret of arbitrary length (TOKEN_ENCRYPTION_KEY).
// HKDF-SHA256 stretches it into the fixed 32-byte AES key. The derivation
// is one-way: the stored ciphertext reveals nothing about the secret.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/ByteWisdomTech/docs/internal/apperror"
	"github.com/ByteWisdomTech/docs/internal/model"
	"github.com/ByteWisdomTech/docs/internal/repository"
)

const (
	nonceSize = 12 // standard GCM nonce
	tagSize   = 16 // GCM authentication tag

	// hkdfInfo binds the derived key to this purpose. Deriving another
	// key from the same secret for a different purpose must use a
	// different info string.
	hkdfInfo = "docs-admin token vault v1"
)

// Vault encrypts tokens and stores them through a TokenRepository.
// The AEAD is built once at construction; Store and Latest are safe for
// concurrent use (cipher.AEAD is stateless, write serialization is the
// repository's job).
type Vault struct {
	aead   cipher.AEAD
	tokens repository.TokenRepository
}

// New derives the encryption key from the operator secret and builds the
// vault. An empty secret is a configuration error: the vault refuses to
// exist rather than fall back to storing plaintext.
func New(secret string, tokens repository.TokenRepository) (*Vault, error) {
	if secret == "" {
		return nil, apperror.Config("token encryption secret is not set")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("vault: deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: creating AEAD: %w", err)
	}

	return &Vault{aead: aead, tokens: tokens}, nil
}

// Store encrypts the plaintext token and appends a new record for the
// (userID, provider) pair. The write is synchronous: when Store returns
// nil, the record is durable.
func (v *Vault) Store(ctx context.Context, userID, provider, plaintext string) error {
	ciphertext, err := v.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("vault: encrypting token: %w", err)
	}

	rec := &model.TokenRecord{
		UserID:     userID,
		Provider:   provider,
		Ciphertext: ciphertext,
	}
	if err := v.tokens.AppendToken(ctx, rec); err != nil {
		return fmt.Errorf("vault: persisting token: %w", err)
	}

	return nil
}

// Latest decrypts and returns the most recently stored token for the
// (userID, provider) pair.
//
// Return shape: (token, true, nil) on success; ("", false, nil) when no
// token has ever been stored — absence is a normal state, not an error;
// ("", false, err) when the record exists but cannot be decrypted.
// A failed authentication tag yields apperror.ErrDecryption and NEVER a
// partial or corrupted plaintext.
func (v *Vault) Latest(ctx context.Context, userID, provider string) (string, bool, error) {
	rec, err := v.tokens.LatestToken(ctx, userID, provider)
	if err != nil {
		return "", false, fmt.Errorf("vault: loading token record: %w", err)
	}
	if rec == nil {
		return "", false, nil
	}

	plaintext, err := v.decrypt(rec.Ciphertext)
	if err != nil {
		return "", false, err
	}
	return plaintext, true, nil
}

// encrypt seals the plaintext and re-packs Go's ct‖tag output into the
// stored nonce‖tag‖ct layout.
func (v *Vault) encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// cipher.AEAD.Seal appends the tag AFTER the ciphertext. The stored
	// layout puts the tag first (nonce‖tag‖ct), so split and reorder.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	buf := make([]byte, 0, nonceSize+len(sealed))
	buf = append(buf, nonce...)
	buf = append(buf, tag...)
	buf = append(buf, ct...)

	return base64.StdEncoding.EncodeToString(buf), nil
}

// decrypt reverses encrypt. Any structural problem (bad base64, short
// buffer) or tag failure maps to apperror.ErrDecryption — the caller can
// not distinguish tampering from a rotated key, and must not try.
func (v *Vault) decrypt(encoded string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperror.Decryption("token record is not valid base64")
	}
	if len(buf) < nonceSize+tagSize {
		return "", apperror.Decryption("token record is truncated")
	}

	nonce := buf[:nonceSize]
	tag := buf[nonceSize : nonceSize+tagSize]
	ct := buf[nonceSize+tagSize:]

	// Rebuild the ct‖tag order cipher.AEAD.Open expects.
	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Open fails closed: on tag mismatch it returns no plaintext
		// at all. Surface that as our own error kind.
		return "", apperror.Decryption("token record failed authentication")
	}

	return string(plaintext), nil
}
