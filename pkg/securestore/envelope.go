package securestore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "ZKSENC1\n"
	valuePrefix     = "zks1:"

	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore envelope is invalid")
	ErrPlaintext  = errors.New("securestore plaintext data")
)

// Envelope is a passphrase-sealed blob, self-describing its KDF parameters
type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// Encrypt seals plaintext under passphrase and returns the prefixed file form
func Encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	env, err := EncryptEnvelope(passphrase, plaintext)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func EncryptEnvelope(passphrase string, plaintext []byte) (*Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return &Envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     kdfTime,
		KDFMemoryKB: kdfMemoryKB,
		KDFThreads:  kdfThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Decrypt opens data produced by Encrypt
func Decrypt(passphrase string, data []byte) ([]byte, error) {
	if !strings.HasPrefix(string(data), filePrefix) {
		return nil, ErrPlaintext
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	return DecryptEnvelope(passphrase, &env)
}

func DecryptEnvelope(passphrase string, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != "argon2id" {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrInvalid
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Box seals many small values under one key derived once from a passphrase.
// Salts stored in a database go through a Box instead of a full Envelope each.
type Box struct {
	key []byte
}

// NewBox derives the box key from passphrase and a deployment-wide KDF salt
func NewBox(passphrase string, kdfSalt []byte) (*Box, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, errors.New("securestore: empty passphrase")
	}
	if len(kdfSalt) < 8 {
		return nil, errors.New("securestore: kdf salt too short")
	}
	return &Box{key: deriveKey(passphrase, kdfSalt)}, nil
}

// Seal encrypts plaintext and returns a printable value. ad binds the value to its row.
func (b *Box) Seal(plaintext, ad []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, ad)
	return valuePrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix return ErrPlaintext.
func (b *Box) Open(value string, ad []byte) ([]byte, error) {
	if !strings.HasPrefix(value, valuePrefix) {
		return nil, ErrPlaintext
	}
	raw, err := base64.RawStdEncoding.DecodeString(value[len(valuePrefix):])
	if err != nil || len(raw) < chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:], ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// IsSealed reports whether value was produced by Box.Seal
func IsSealed(value string) bool {
	return strings.HasPrefix(value, valuePrefix)
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, kdfTime, kdfMemoryKB, kdfThreads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
