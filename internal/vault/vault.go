package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrKeyMissing        = errors.New("vault_key_missing")
	ErrInvalidCiphertext = errors.New("vault_invalid_ciphertext")
)

const envelopeVersion = 1

type envelope struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Vault encrypts and decrypts delegated merchant credentials at rest.
// The key is derived from the configured secret; constructing a Vault
// without one is a startup error, never a plaintext fallback.
type Vault struct {
	key []byte
}

func New(secret string) (*Vault, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrKeyMissing
	}
	sum := sha256.Sum256([]byte(secret))
	return &Vault{key: sum[:]}, nil
}

// EncryptString seals plaintext into a versioned JSON envelope suitable
// for a text column.
func (v *Vault) EncryptString(plaintext string) (string, error) {
	sealed, err := v.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return string(sealed), nil
}

// DecryptString opens an envelope produced by EncryptString.
func (v *Vault) DecryptString(sealed string) (string, error) {
	plain, err := v.Decrypt([]byte(sealed))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	if v == nil || len(v.key) == 0 {
		return nil, ErrKeyMissing
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return json.Marshal(envelope{
		Version:    envelopeVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
}

func (v *Vault) Decrypt(sealed []byte) ([]byte, error) {
	if v == nil || len(v.key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(sealed) == 0 {
		return nil, ErrInvalidCiphertext
	}

	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, ErrInvalidCiphertext
	}
	if env.Version != envelopeVersion {
		return nil, ErrInvalidCiphertext
	}

	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plain, nil
}
