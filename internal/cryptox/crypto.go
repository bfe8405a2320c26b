// Package cryptox is the single place raw cryptographic operations occur.
// Every higher layer works in terms of the Envelope it produces, so the
// AEAD mode, IV policy and KDF cost factor are defined (and auditable) once.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/couplesdiary/cryptocore/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the symmetric key length in bytes (AES-256).
	KeySize = 32

	// NonceSize is the GCM nonce length in bytes (96 bits).
	NonceSize = 12

	// SaltSize is the KDF salt length in bytes.
	SaltSize = 16

	// KDFIterations is the PBKDF2 iteration count. Raising it invalidates
	// nothing (the salt travels with the ciphertext and derivation is
	// re-run per password), but lowering it weakens offline resistance.
	KDFIterations = 100_000

	// Algorithm tags the envelope so an importer can reject ciphertext it
	// does not understand instead of producing garbage.
	Algorithm = "AES-256-GCM"

	passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"
)

// Envelope is the self-contained unit of ciphertext interchange. The JSON
// form of this struct is the on-disk and wire format: it is what gets stored
// in an encrypted entry's content column and what an encrypted export file
// contains.
type Envelope struct {
	// Ciphertext is the base64-encoded AEAD output (tag included).
	Ciphertext string `json:"ciphertext"`

	// IV is the base64-encoded nonce, unique per encryption call.
	IV string `json:"iv"`

	// Salt is the base64-encoded KDF salt, present only when the key was
	// password-derived and the consumer needs it to re-derive the key.
	Salt string `json:"salt,omitempty"`

	// Algorithm identifies the AEAD mode that produced the ciphertext.
	Algorithm string `json:"algorithm"`
}

// Marshal serializes the envelope to its canonical JSON form.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope deserializes data into an Envelope. It returns
// common.ErrInvalidFormat when data is not an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	if e.Ciphertext == "" || e.IV == "" {
		return nil, fmt.Errorf("%w: missing ciphertext or iv", common.ErrInvalidFormat)
	}
	return &e, nil
}

// IsEnvelope reports whether data structurally looks like a serialized
// Envelope. Used by import paths to distinguish encrypted payloads from
// plain JSON without guessing passwords.
func IsEnvelope(data []byte) bool {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	return e.Ciphertext != "" && e.IV != ""
}

// GenerateKey produces a fresh random 256-bit symmetric key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// DeriveKeyFromPassword derives a 256-bit key from a password using
// PBKDF2-SHA256. If salt is nil a fresh random salt is generated; the caller
// must persist the returned salt alongside any resulting ciphertext, because
// the same salt is required to re-derive the identical key later.
func DeriveKeyFromPassword(password []byte, salt []byte) (key, outSalt []byte) {
	if salt == nil {
		salt = common.GenerateRandByteArray(SaltSize)
	}
	key = pbkdf2.Key(password, salt, KDFIterations, KeySize, sha256.New)
	return key, salt
}

// DeriveKeyForPurpose derives a purpose-scoped key from a shared passphrase.
// The effective salt is SHA-256(baseSalt || purpose), so keys for distinct
// purposes are mutually independent: compromise of one does not reveal
// another without the passphrase itself.
func DeriveKeyForPurpose(password []byte, baseSalt []byte, purpose string) []byte {
	h := sha256.New()
	h.Write(baseSalt)
	h.Write([]byte(purpose))
	key, _ := DeriveKeyFromPassword(password, h.Sum(nil))
	return key
}

// Encrypt runs AEAD encryption over plaintext with a fresh random IV and
// returns a self-describing envelope. Encrypting the same plaintext twice
// yields different envelopes; that is required, not incidental.
func Encrypt(plaintext, key []byte) (*Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}

	nonce := common.GenerateRandByteArray(NonceSize)
	ciphertext := aesgcm.Seal(nil, nonce, plaintext, nil)

	return &Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Algorithm:  Algorithm,
	}, nil
}

// Decrypt verifies and decrypts an envelope. Any authentication failure
// (tampered ciphertext, wrong key, corrupted IV) yields
// common.ErrAuthentication; corrupted plaintext is never returned.
func Decrypt(envelope *Envelope, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", common.ErrInvalidFormat)
	}
	nonce, err := base64.StdEncoding.DecodeString(envelope.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv encoding", common.ErrInvalidFormat)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad iv length %d", common.ErrInvalidFormat, len(nonce))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthentication
	}
	return plaintext, nil
}

// EncryptJSON serializes v and encrypts the result.
func EncryptJSON(v any, key []byte) (*Envelope, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Encrypt(plaintext, key)
}

// DecryptJSON decrypts an envelope and unmarshals the plaintext into v.
func DecryptJSON(envelope *Envelope, key []byte, v any) error {
	plaintext, err := Decrypt(envelope, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// Hash returns the hex-encoded SHA-256 digest of data, used for export and
// archive checksums.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GeneratePassword returns a cryptographically random password of the given
// length drawn from a fixed charset. Used for export and archive passwords.
func GeneratePassword(length int) string {
	raw := common.GenerateRandByteArray(length)
	out := make([]byte, length)
	for i, b := range raw {
		out[i] = passwordCharset[int(b)%len(passwordCharset)]
	}
	return string(out)
}
