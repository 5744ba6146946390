package webpush

import (
	"log/slog"

	"github.com/getpushd/pushd/pkg/logging"
)

// Engine orchestrates the subscription registry, the protocol validator,
// the crypto capability and the message log. It exposes the four operations
// the transport layer consumes: Subscribe, ExpireSubscription,
// HandleNotification and GetNotifications.
type Engine struct {
	crypto   Capability
	registry *Registry
	messages *messageLog
	log      *slog.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithCrypto replaces the crypto capability. Used by tests to inject
// failures; production code keeps the StdCrypto default.
func WithCrypto(c Capability) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.crypto = c
		}
	}
}

// NewEngine creates an Engine issuing subscription endpoints under
// endpointURL.
func NewEngine(endpointURL string, opts ...EngineOption) *Engine {
	e := &Engine{
		crypto:   StdCrypto{},
		messages: newMessageLog(),
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registry = NewRegistry(endpointURL, e.crypto)
	return e
}

// Registry returns the subscription registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// MessageCount returns the number of messages stored across all
// subscriptions.
func (e *Engine) MessageCount() int {
	return e.messages.total()
}

// Subscribe creates a new mock subscription from the given options.
func (e *Engine) Subscribe(options map[string]string) (*SubscriptionInfo, error) {
	info, err := e.registry.Create(options)
	if err != nil {
		return nil, err
	}
	e.log.Info("subscription created", "clientHash", info.ClientHash, "vapid", options[optionApplicationServerKey] != "")
	return info, nil
}

// ExpireSubscription marks a subscription expired. Notifications to it fail
// with SubscriptionExpired from then on.
func (e *Engine) ExpireSubscription(clientHash string) error {
	if err := e.registry.Expire(clientHash); err != nil {
		return err
	}
	e.log.Info("subscription expired", "clientHash", clientHash)
	return nil
}

// GetNotifications returns the decrypted messages accumulated for a
// subscription, oldest first.
func (e *Engine) GetNotifications(clientHash string) ([]string, error) {
	if _, err := e.registry.Get(clientHash); err != nil {
		return nil, err
	}
	return e.messages.get(clientHash), nil
}

// HandleNotification validates, authenticates and decrypts one push
// notification and appends the plaintext to the message log. The log is
// only touched after full successful decryption; every failure path leaves
// all state untouched.
func (e *Engine) HandleNotification(clientHash string, h Headers, body []byte) error {
	sub, err := e.registry.Get(clientHash)
	if err != nil {
		return err
	}
	if expired, _ := e.registry.IsExpired(clientHash); expired {
		return newError(CodeSubscriptionExpired, "subscription %q has expired", clientHash)
	}
	if err := validateHeaders(sub, h); err != nil {
		return err
	}

	params := DecryptParams{
		Encoding:   h.Encoding,
		AuthSecret: sub.AuthSecret,
		Keys:       sub.Keys,
	}

	switch h.Encoding {
	case EncodingAESGCM:
		field, err := parseCryptoKeyField(h.CryptoKey, sub.VAPIDMode())
		if err != nil {
			return err
		}
		if sub.VAPIDMode() {
			token, err := parseWebPushAuthorization(h.Authorization)
			if err != nil {
				return err
			}
			if err := e.verifyToken(token, sub.ApplicationServerKey); err != nil {
				return err
			}
			if err := matchApplicationServerKey(e.crypto, field.p256ecdsa, sub.ApplicationServerKey); err != nil {
				return err
			}
		}
		salt, err := parseEncryptionField(h.Encryption)
		if err != nil {
			return err
		}
		// Validated by parseCryptoKeyField above.
		params.SenderKey, _ = decodeBase64URL(field.dh)
		params.Salt = salt

	case EncodingAES128GCM:
		// Non-VAPID subscriptions skip VAPID validation here; the salt and
		// sender key both live in the body framing.
		if sub.VAPIDMode() {
			token, key, err := parseVapidAuthorization(h.Authorization)
			if err != nil {
				return err
			}
			if err := matchApplicationServerKey(e.crypto, key, sub.ApplicationServerKey); err != nil {
				return err
			}
			if err := e.verifyToken(token, sub.ApplicationServerKey); err != nil {
				return err
			}
		}
	}

	plaintext, err := e.crypto.Decrypt(body, params)
	if err != nil {
		e.log.Debug("notification rejected", "clientHash", clientHash, "error", err)
		return newError(CodeDecryptionFailed, "content decryption failed: %v", err)
	}

	e.messages.append(clientHash, string(plaintext))
	e.log.Info("notification stored", "clientHash", clientHash, "encoding", h.Encoding, "bytes", len(plaintext))
	return nil
}

// verifyToken checks a compact VAPID token against the stored application
// server key. Any signature or decoding failure is InvalidToken.
func (e *Engine) verifyToken(token, storedKey string) error {
	raw, err := decodeBase64URL(storedKey)
	if err != nil {
		return newError(CodeInvalidToken, "stored application server key is not valid base64url: %v", err)
	}
	if err := e.crypto.VerifyToken(token, raw); err != nil {
		return newError(CodeInvalidToken, "vapid token rejected: %v", err)
	}
	return nil
}
