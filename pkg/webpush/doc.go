// Package webpush implements the core of the pushd mock push service: a
// subscription registry, a Web Push protocol validator, and a notification
// engine that authenticates and decrypts incoming push messages.
//
// The engine accepts the two encrypted content encodings used by Web Push,
// aesgcm (draft-ietf-webpush-encryption-04, keys and salt carried in the
// Crypto-Key and Encryption headers) and aes128gcm (RFC 8291, parameters
// embedded in the body framing per RFC 8188). Subscriptions created with an
// applicationServerKey are in VAPID mode and require a signed ES256 token on
// every notification.
//
// All state is held in memory for the lifetime of one process. Decrypted
// messages accumulate in an append-only per-subscription log that test
// drivers read back through GetNotifications.
//
// Cryptographic primitives are never implemented here. They sit behind the
// Capability interface, whose standard implementation delegates to
// crypto/ecdh, crypto/hkdf, crypto/aes and github.com/golang-jwt/jwt.
package webpush
