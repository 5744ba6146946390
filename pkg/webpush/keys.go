package webpush

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

// Sizes fixed by the Web Push protocol.
const (
	// PublicKeyLength is the length of an uncompressed P-256 point.
	PublicKeyLength = 65
	// AuthSecretLength is the length of the per-subscription auth secret.
	AuthSecretLength = 16
)

// uncompressedPointPrefix is the leading byte of an uncompressed EC point.
const uncompressedPointPrefix = 0x04

// KeyPair is a P-256 ECDH key pair. The public half is handed to
// subscribers; the private half stays inside the engine and is reused for
// every notification to the subscription.
type KeyPair struct {
	private *ecdh.PrivateKey
}

// PublicKey returns the uncompressed public point (65 bytes, leading 0x04).
func (k *KeyPair) PublicKey() []byte {
	return k.private.PublicKey().Bytes()
}

// DecryptParams carries everything the Capability needs to decrypt one
// notification body. SenderKey and Salt are only set for aesgcm; aes128gcm
// carries both inside the body framing.
type DecryptParams struct {
	Encoding   string
	SenderKey  []byte
	Salt       []byte
	AuthSecret []byte
	Keys       *KeyPair
}

// Capability is the cryptographic collaborator used by the registry and the
// notification engine. Implementations must only delegate to audited crypto
// libraries; the engine never touches primitives directly.
type Capability interface {
	// GenerateKeyPair creates a fresh P-256 ECDH key pair.
	GenerateKeyPair() (*KeyPair, error)

	// RandomBytes returns n cryptographically random bytes.
	RandomBytes(n int) ([]byte, error)

	// Equal compares two byte slices in constant time. A length mismatch
	// must not short-circuit before the overlapping bytes are compared.
	Equal(a, b []byte) bool

	// ValidatePublicKey reports whether raw is a valid uncompressed P-256
	// public point.
	ValidatePublicKey(raw []byte) error

	// VerifyToken checks the ES256 signature of a compact JWT against the
	// given uncompressed P-256 public key.
	VerifyToken(token string, publicKey []byte) error

	// Decrypt authenticates and decrypts a notification body according to
	// the content encoding named in params.
	Decrypt(body []byte, params DecryptParams) ([]byte, error)
}

// StdCrypto implements Capability on top of the standard library and
// golang-jwt. It is stateless and safe for concurrent use.
type StdCrypto struct{}

var _ Capability = StdCrypto{}

// GenerateKeyPair implements Capability.
func (StdCrypto) GenerateKeyPair() (*KeyPair, error) {
	private, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating P-256 key pair: %w", err)
	}
	return &KeyPair{private: private}, nil
}

// RandomBytes implements Capability.
func (StdCrypto) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return b, nil
}

// Equal implements Capability. The overlapping prefix is always compared
// before a length mismatch is reported, so timing does not reveal how many
// bytes matched.
func (StdCrypto) Equal(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	prefixEqual := subtle.ConstantTimeCompare(a[:n], b[:n]) == 1
	return prefixEqual && len(a) == len(b)
}

// ValidatePublicKey implements Capability.
func (StdCrypto) ValidatePublicKey(raw []byte) error {
	if len(raw) != PublicKeyLength || raw[0] != uncompressedPointPrefix {
		return errors.New("not a 65-byte uncompressed P-256 point")
	}
	if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
		return fmt.Errorf("invalid P-256 point: %w", err)
	}
	return nil
}

// VerifyToken implements Capability.
func (c StdCrypto) VerifyToken(token string, publicKey []byte) error {
	pub, err := c.ecdsaPublicKey(publicKey)
	if err != nil {
		return err
	}
	_, err = jwt.Parse(token, func(*jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	return err
}

// ecdsaPublicKey converts an uncompressed P-256 point into the ecdsa form
// golang-jwt expects. Point validity is checked via crypto/ecdh first.
func (c StdCrypto) ecdsaPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if err := c.ValidatePublicKey(raw); err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[1:33]),
		Y:     new(big.Int).SetBytes(raw[33:PublicKeyLength]),
	}, nil
}
