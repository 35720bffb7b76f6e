package credentials

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealVersion = 1

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltLength   = 16
)

// sealedRecord is the on-disk form of an encrypted pair.
type sealedRecord struct {
	Version    int    `json:"v"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"data"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

func seal(passphrase string, pair Pair) ([]byte, error) {
	plaintext, err := json.Marshal(pair)
	if err != nil {
		return nil, fmt.Errorf("marshal pair: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return json.Marshal(sealedRecord{
		Version:    sealVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	})
}

func open(passphrase string, rec sealedRecord) (Pair, error) {
	if rec.Version != sealVersion {
		return Pair{}, fmt.Errorf("unsupported sealed record version %d", rec.Version)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, rec.Salt))
	if err != nil {
		return Pair{}, fmt.Errorf("create cipher: %w", err)
	}
	if len(rec.Nonce) != aead.NonceSize() {
		return Pair{}, fmt.Errorf("invalid nonce length %d", len(rec.Nonce))
	}

	plaintext, err := aead.Open(nil, rec.Nonce, rec.Ciphertext, nil)
	if err != nil {
		return Pair{}, fmt.Errorf("decrypt pair: %w", err)
	}

	var pair Pair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return Pair{}, fmt.Errorf("unmarshal pair: %w", err)
	}
	return pair, nil
}
