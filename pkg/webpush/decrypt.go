package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hkdf"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Content encodings accepted for notifications.
const (
	// EncodingAESGCM is the older scheme: the sender key and salt travel in
	// the Crypto-Key and Encryption headers.
	EncodingAESGCM = "aesgcm"
	// EncodingAES128GCM is the RFC 8291 scheme: salt and sender key are
	// embedded in the RFC 8188 body framing.
	EncodingAES128GCM = "aes128gcm"
)

const (
	cekLength   = 16
	nonceLength = 12
)

// Decrypt implements Capability.
func (StdCrypto) Decrypt(body []byte, params DecryptParams) ([]byte, error) {
	switch params.Encoding {
	case EncodingAESGCM:
		return decryptAESGCM(body, params)
	case EncodingAES128GCM:
		return decryptAES128GCM(body, params)
	default:
		return nil, fmt.Errorf("unknown content encoding %q", params.Encoding)
	}
}

// decryptAESGCM handles draft-ietf-webpush-encryption-04 content. The key
// derivation context binds both public keys, and the plaintext carries a
// two-byte padding length prefix.
func decryptAESGCM(body []byte, params DecryptParams) ([]byte, error) {
	if len(params.Salt) != 16 {
		return nil, fmt.Errorf("salt must be 16 bytes, got %d", len(params.Salt))
	}
	secret, senderPub, err := sharedSecret(params.Keys, params.SenderKey)
	if err != nil {
		return nil, err
	}
	ikm, err := hkdf.Key(sha256.New, secret, params.AuthSecret, "Content-Encoding: auth\x00", 32)
	if err != nil {
		return nil, fmt.Errorf("deriving input keying material: %w", err)
	}

	context := keyDerivationContext(params.Keys.PublicKey(), senderPub)
	cek, err := hkdf.Key(sha256.New, ikm, params.Salt, "Content-Encoding: aesgcm\x00"+context, cekLength)
	if err != nil {
		return nil, fmt.Errorf("deriving content encryption key: %w", err)
	}
	nonce, err := hkdf.Key(sha256.New, ikm, params.Salt, "Content-Encoding: nonce\x00"+context, nonceLength)
	if err != nil {
		return nil, fmt.Errorf("deriving nonce: %w", err)
	}

	plain, err := gcmOpen(cek, nonce, body)
	if err != nil {
		return nil, err
	}
	return stripLengthPadding(plain)
}

// decryptAES128GCM handles RFC 8291 content framed per RFC 8188.
func decryptAES128GCM(body []byte, params DecryptParams) ([]byte, error) {
	// Header: salt(16) || record size(4) || key id length(1) || key id.
	if len(body) < 21 {
		return nil, errors.New("truncated aes128gcm content header")
	}
	salt := body[:16]
	recordSize := binary.BigEndian.Uint32(body[16:20])
	if recordSize < 18 {
		return nil, fmt.Errorf("record size %d below RFC 8188 minimum", recordSize)
	}
	idLen := int(body[20])
	if len(body) < 21+idLen {
		return nil, errors.New("truncated aes128gcm key id")
	}
	senderKey := body[21 : 21+idLen]
	records := body[21+idLen:]
	if len(records) == 0 {
		return nil, errors.New("aes128gcm content has no records")
	}

	secret, senderPub, err := sharedSecret(params.Keys, senderKey)
	if err != nil {
		return nil, err
	}
	info := "WebPush: info\x00" + string(params.Keys.PublicKey()) + senderPub
	ikm, err := hkdf.Key(sha256.New, secret, params.AuthSecret, info, 32)
	if err != nil {
		return nil, fmt.Errorf("deriving input keying material: %w", err)
	}
	cek, err := hkdf.Key(sha256.New, ikm, salt, "Content-Encoding: aes128gcm\x00", cekLength)
	if err != nil {
		return nil, fmt.Errorf("deriving content encryption key: %w", err)
	}
	nonceBase, err := hkdf.Key(sha256.New, ikm, salt, "Content-Encoding: nonce\x00", nonceLength)
	if err != nil {
		return nil, fmt.Errorf("deriving nonce: %w", err)
	}

	var out []byte
	for seq := uint64(0); len(records) > 0; seq++ {
		n := int(recordSize)
		if len(records) < n {
			n = len(records)
		}
		record := records[:n]
		records = records[n:]

		plain, err := gcmOpen(cek, recordNonce(nonceBase, seq), record)
		if err != nil {
			return nil, err
		}
		chunk, err := stripRecordPadding(plain, len(records) == 0)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// sharedSecret computes the ECDH shared secret between the subscription's
// private key and the sender's ephemeral public key. Returns the secret and
// the validated sender point.
func sharedSecret(keys *KeyPair, senderKey []byte) ([]byte, string, error) {
	pub, err := ecdh.P256().NewPublicKey(senderKey)
	if err != nil {
		return nil, "", fmt.Errorf("invalid sender public key: %w", err)
	}
	secret, err := keys.private.ECDH(pub)
	if err != nil {
		return nil, "", fmt.Errorf("computing shared secret: %w", err)
	}
	return secret, string(pub.Bytes()), nil
}

// keyDerivationContext builds the aesgcm HKDF context:
// "P-256" || 0x00 || len(ua_public) || ua_public || len(as_public) || as_public
// with lengths as 16-bit big-endian integers.
func keyDerivationContext(uaPublic []byte, asPublic string) string {
	ctx := make([]byte, 0, 6+2+len(uaPublic)+2+len(asPublic))
	ctx = append(ctx, "P-256"...)
	ctx = append(ctx, 0x00)
	ctx = binary.BigEndian.AppendUint16(ctx, uint16(len(uaPublic)))
	ctx = append(ctx, uaPublic...)
	ctx = binary.BigEndian.AppendUint16(ctx, uint16(len(asPublic)))
	ctx = append(ctx, asPublic...)
	return string(ctx)
}

func gcmOpen(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("ciphertext failed authentication")
	}
	return plain, nil
}

// recordNonce XORs the record sequence number into the low bytes of the
// HKDF-derived nonce base, per RFC 8188 section 2.3.
func recordNonce(base []byte, seq uint64) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(seq >> (8 * i))
	}
	return nonce
}

// stripLengthPadding removes the aesgcm two-byte padding length prefix and
// the zero padding it counts.
func stripLengthPadding(plain []byte) ([]byte, error) {
	if len(plain) < 2 {
		return nil, errors.New("plaintext shorter than padding prefix")
	}
	padLen := int(binary.BigEndian.Uint16(plain[:2]))
	if len(plain) < 2+padLen {
		return nil, errors.New("padding length exceeds plaintext")
	}
	for _, b := range plain[2 : 2+padLen] {
		if b != 0 {
			return nil, errors.New("padding contains non-zero bytes")
		}
	}
	return plain[2+padLen:], nil
}

// stripRecordPadding removes RFC 8188 trailing padding: zero bytes preceded
// by a delimiter of 0x02 on the final record and 0x01 otherwise.
func stripRecordPadding(plain []byte, last bool) ([]byte, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, errors.New("record contains only padding")
	}
	delimiter := byte(0x01)
	if last {
		delimiter = 0x02
	}
	if plain[i] != delimiter {
		return nil, fmt.Errorf("record delimiter 0x%02x, want 0x%02x", plain[i], delimiter)
	}
	return plain[:i], nil
}
