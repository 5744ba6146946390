package webpush

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// authorizationScheme is the scheme name expected with aesgcm VAPID.
const authorizationScheme = "WebPush"

// vapidPrefix introduces the aes128gcm authorization form.
const vapidPrefix = "vapid "

// Headers carries the notification headers, pre-extracted from their
// transport-specific names (Content-Encoding, TTL, Authorization,
// Encryption, Crypto-Key) by the transport layer.
type Headers struct {
	Encoding      string
	TTL           string
	Authorization string
	Encryption    string
	CryptoKey     string
}

// validateHeaders checks the fields every notification must carry,
// regardless of encoding.
func validateHeaders(sub *Subscription, h Headers) error {
	if h.Encoding != EncodingAESGCM && h.Encoding != EncodingAES128GCM {
		return newError(CodeUnsupportedEncoding, "unsupported content encoding %q", h.Encoding)
	}
	if _, err := strconv.Atoi(h.TTL); err != nil {
		return newError(CodeInvalidTTL, "ttl header must be an integer, got %q", h.TTL)
	}
	if sub.VAPIDMode() && h.Authorization == "" {
		return newError(CodeMissingAuthorization,
			"subscription was created with an applicationServerKey but the notification has no authorization header")
	}
	return nil
}

// cryptoKeyField holds the raw values parsed out of a Crypto-Key header.
type cryptoKeyField struct {
	dh        string
	p256ecdsa string
}

// parseCryptoKeyField splits a Crypto-Key header into its ;-separated
// key=value pairs. dh is always required; p256ecdsa additionally in VAPID
// mode. The dh value must decode to an uncompressed P-256 point.
func parseCryptoKeyField(raw string, vapidMode bool) (*cryptoKeyField, error) {
	pairs := parsePairs(raw, ";")
	dh, ok := pairs["dh"]
	if !ok {
		return nil, newError(CodeInvalidCryptoKey, "crypto-key header has no dh entry")
	}
	field := &cryptoKeyField{dh: dh}
	if vapidMode {
		field.p256ecdsa, ok = pairs["p256ecdsa"]
		if !ok {
			return nil, newError(CodeInvalidCryptoKey, "crypto-key header has no p256ecdsa entry")
		}
	}
	decoded, err := decodeBase64URL(dh)
	if err != nil {
		return nil, newError(CodeInvalidCryptoKey, "dh value is not valid base64url: %v", err)
	}
	if len(decoded) != PublicKeyLength || decoded[0] != uncompressedPointPrefix {
		return nil, newError(CodeInvalidCryptoKey,
			"dh value must be a 65-byte uncompressed P-256 point, got %d bytes", len(decoded))
	}
	return field, nil
}

// parseEncryptionField extracts the salt from an Encryption header.
func parseEncryptionField(raw string) ([]byte, error) {
	pairs := parsePairs(raw, ";")
	value, ok := pairs["salt"]
	if !ok {
		return nil, newError(CodeInvalidCryptoKey, "encryption header has no salt entry")
	}
	salt, err := decodeBase64URL(value)
	if err != nil {
		return nil, newError(CodeInvalidCryptoKey, "salt value is not valid base64url: %v", err)
	}
	return salt, nil
}

// parseVapidAuthorization parses the aes128gcm authorization form:
// "vapid t=<token>,k=<base64url key>".
func parseVapidAuthorization(raw string) (token, key string, err error) {
	rest, ok := strings.CutPrefix(raw, vapidPrefix)
	if !ok {
		return "", "", newError(CodeInvalidAuthorizationHeader,
			"authorization header must start with %q", vapidPrefix)
	}
	pairs := parsePairs(rest, ",")
	token, ok = pairs["t"]
	if !ok {
		return "", "", newError(CodeInvalidAuthorizationHeader, "authorization header has no t entry")
	}
	key, ok = pairs["k"]
	if !ok {
		return "", "", newError(CodeInvalidAuthorizationHeader, "authorization header has no k entry")
	}
	return token, key, nil
}

// parseWebPushAuthorization parses the aesgcm authorization form:
// "WebPush <token>".
func parseWebPushAuthorization(raw string) (string, error) {
	parts := strings.Split(raw, " ")
	if len(parts) != 2 || parts[0] != authorizationScheme {
		return "", newError(CodeInvalidAuthorizationHeader,
			"authorization header must be %q followed by a token", authorizationScheme)
	}
	return parts[1], nil
}

// matchApplicationServerKey decodes both keys and compares them in constant
// time via the Capability.
func matchApplicationServerKey(crypto Capability, parsedKey, storedKey string) error {
	parsed, err := decodeBase64URL(parsedKey)
	if err != nil {
		return newError(CodeInvalidCryptoKey, "application server key is not valid base64url: %v", err)
	}
	stored, err := decodeBase64URL(storedKey)
	if err != nil {
		return newError(CodeInvalidCryptoKey, "stored application server key is not valid base64url: %v", err)
	}
	if !crypto.Equal(parsed, stored) {
		return newError(CodeInvalidCryptoKey, "application server key does not match the subscription")
	}
	return nil
}

// parsePairs splits raw on sep and each element on the first "=". Elements
// without an "=" are dropped.
func parsePairs(raw, sep string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(raw, sep) {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		pairs[name] = value
	}
	return pairs
}

// decodeBase64URL accepts both padded and unpadded base64url input; Web
// Push clients are inconsistent about padding.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func encodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
