package webpush

// Test-side encryption: the application-server half of the Web Push
// exchange, used to build real notifications against the engine.

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hkdf"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, code, werr.Code)
}

func newVAPIDKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func vapidPublicKey(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	pub, err := key.PublicKey.ECDH()
	require.NoError(t, err)
	return encodeBase64URL(pub.Bytes())
}

func signVAPIDToken(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": "http://localhost",
		"sub": "mailto:webpush@example.com",
		"exp": time.Now().Add(12 * time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// senderSecret derives the ECDH shared secret from the sender side and
// returns it with the sender's ephemeral public point.
func senderSecret(t *testing.T, info *SubscriptionInfo) (secret, senderPub, uaPub, auth []byte) {
	t.Helper()
	uaPub, err := decodeBase64URL(info.P256DH)
	require.NoError(t, err)
	auth, err = decodeBase64URL(info.Auth)
	require.NoError(t, err)

	senderPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	uaKey, err := ecdh.P256().NewPublicKey(uaPub)
	require.NoError(t, err)
	secret, err = senderPriv.ECDH(uaKey)
	require.NoError(t, err)
	return secret, senderPriv.PublicKey().Bytes(), uaPub, auth
}

func gcmSeal(t *testing.T, key, nonce, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	return aead.Seal(nil, nonce, plaintext, nil)
}

func hkdfKey(t *testing.T, secret, salt []byte, info string, length int) []byte {
	t.Helper()
	key, err := hkdf.Key(sha256.New, secret, salt, info, length)
	require.NoError(t, err)
	return key
}

// encryptAESGCM encrypts plaintext in the older scheme and returns the
// base64url dh and salt header values plus the ciphertext body.
func encryptAESGCM(t *testing.T, info *SubscriptionInfo, plaintext string) (dh, salt string, body []byte) {
	t.Helper()
	secret, senderPub, uaPub, auth := senderSecret(t, info)

	rawSalt := make([]byte, 16)
	_, err := rand.Read(rawSalt)
	require.NoError(t, err)

	ikm := hkdfKey(t, secret, auth, "Content-Encoding: auth\x00", 32)
	context := keyDerivationContext(uaPub, string(senderPub))
	cek := hkdfKey(t, ikm, rawSalt, "Content-Encoding: aesgcm\x00"+context, 16)
	nonce := hkdfKey(t, ikm, rawSalt, "Content-Encoding: nonce\x00"+context, 12)

	padded := append([]byte{0x00, 0x00}, plaintext...)
	body = gcmSeal(t, cek, nonce, padded)
	return encodeBase64URL(senderPub), encodeBase64URL(rawSalt), body
}

// encryptAES128GCM encrypts plaintext as a single aes128gcm record with
// full RFC 8188 framing.
func encryptAES128GCM(t *testing.T, info *SubscriptionInfo, plaintext string) []byte {
	t.Helper()
	return encryptAES128GCMRecords(t, info, [][]byte{[]byte(plaintext)}, 4096)
}

// encryptAES128GCMRecords frames chunks as consecutive records of the
// given record size. Every chunk but the last must fill its record
// exactly: len(chunk) == recordSize - 17 (delimiter plus GCM tag).
func encryptAES128GCMRecords(t *testing.T, info *SubscriptionInfo, chunks [][]byte, recordSize uint32) []byte {
	t.Helper()
	secret, senderPub, uaPub, auth := senderSecret(t, info)

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	ikmInfo := "WebPush: info\x00" + string(uaPub) + string(senderPub)
	ikm := hkdfKey(t, secret, auth, ikmInfo, 32)
	cek := hkdfKey(t, ikm, salt, "Content-Encoding: aes128gcm\x00", 16)
	nonceBase := hkdfKey(t, ikm, salt, "Content-Encoding: nonce\x00", 12)

	body := make([]byte, 0, 21+len(senderPub))
	body = append(body, salt...)
	body = binary.BigEndian.AppendUint32(body, recordSize)
	body = append(body, byte(len(senderPub)))
	body = append(body, senderPub...)

	for i, chunk := range chunks {
		delimiter := byte(0x01)
		if i == len(chunks)-1 {
			delimiter = 0x02
		}
		record := append(append([]byte{}, chunk...), delimiter)
		sealed := gcmSeal(t, cek, recordNonce(nonceBase, uint64(i)), record)
		if i < len(chunks)-1 {
			require.Len(t, sealed, int(recordSize), "non-final record must fill the record size")
		}
		body = append(body, sealed...)
	}
	return body
}

// aesgcmHeaders builds the header set for an older-encoding notification.
func aesgcmHeaders(dh, salt string) Headers {
	return Headers{
		Encoding:   EncodingAESGCM,
		TTL:        "60",
		CryptoKey:  "dh=" + dh,
		Encryption: "salt=" + salt,
	}
}
