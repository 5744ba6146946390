package webpush

import (
	"encoding/hex"
	"fmt"
	"sync"
)

// clientHashBytes is the amount of randomness behind each client hash.
const clientHashBytes = 32

// Recognized subscription options.
const (
	optionUserVisibleOnly      = "userVisibleOnly"
	optionApplicationServerKey = "applicationServerKey"
)

// Subscription is one mock push subscription. Fields are immutable after
// creation except the expiry flag, which the registry guards.
type Subscription struct {
	// ClientHash is the opaque identifier used in place of a real
	// push-service endpoint path.
	ClientHash string

	// ApplicationServerKey is the base64url VAPID public key supplied at
	// subscribe time. Empty means the subscription is not in VAPID mode.
	ApplicationServerKey string

	// Keys is the P-256 ECDH pair generated for this subscription.
	Keys *KeyPair

	// AuthSecret is the 16-byte shared secret handed to the subscriber.
	AuthSecret []byte

	expired bool
}

// VAPIDMode reports whether notifications to this subscription must carry
// VAPID authentication.
func (s *Subscription) VAPIDMode() bool {
	return s.ApplicationServerKey != ""
}

// SubscriptionInfo is what a successful subscribe call hands back to the
// caller: the mock endpoint plus the key material a real browser would
// expose on PushSubscription.
type SubscriptionInfo struct {
	Endpoint   string
	ClientHash string
	P256DH     string
	Auth       string
}

// Registry creates, stores, looks up and expires mock push subscriptions.
// It is safe for concurrent use. Subscriptions live until the process ends;
// there is no delete operation.
type Registry struct {
	crypto      Capability
	endpointURL string

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewRegistry creates a Registry issuing endpoints under endpointURL.
func NewRegistry(endpointURL string, crypto Capability) *Registry {
	return &Registry{
		crypto:      crypto,
		endpointURL: endpointURL,
		subs:        make(map[string]*Subscription),
	}
}

// Create validates the subscribe options against the allow-list, generates
// the subscription key material and stores the subscription.
func (r *Registry) Create(options map[string]string) (*SubscriptionInfo, error) {
	serverKey := ""
	for name, value := range options {
		switch name {
		case optionUserVisibleOnly:
			if value != "true" && value != "false" {
				return nil, newError(CodeInvalidBoolean,
					"option %s must be \"true\" or \"false\", got %q", optionUserVisibleOnly, value)
			}
		case optionApplicationServerKey:
			raw, err := decodeBase64URL(value)
			if err != nil {
				return nil, newError(CodeInvalidVapidKey, "applicationServerKey is not valid base64url: %v", err)
			}
			if err := r.crypto.ValidatePublicKey(raw); err != nil {
				return nil, newError(CodeInvalidVapidKey, "applicationServerKey rejected: %v", err)
			}
			serverKey = value
		default:
			return nil, newError(CodeInvalidParameter, "unrecognized subscription option %q", name)
		}
	}

	keys, err := r.crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("creating subscription keys: %w", err)
	}
	auth, err := r.crypto.RandomBytes(AuthSecretLength)
	if err != nil {
		return nil, fmt.Errorf("creating auth secret: %w", err)
	}
	hashBytes, err := r.crypto.RandomBytes(clientHashBytes)
	if err != nil {
		return nil, fmt.Errorf("creating client hash: %w", err)
	}
	hash := hex.EncodeToString(hashBytes)

	sub := &Subscription{
		ClientHash:           hash,
		ApplicationServerKey: serverKey,
		Keys:                 keys,
		AuthSecret:           auth,
	}

	r.mu.Lock()
	r.subs[hash] = sub
	r.mu.Unlock()

	return &SubscriptionInfo{
		Endpoint:   r.endpointURL + "/notify/" + hash,
		ClientHash: hash,
		P256DH:     encodeBase64URL(keys.PublicKey()),
		Auth:       encodeBase64URL(auth),
	}, nil
}

// Get looks up a subscription by client hash.
func (r *Registry) Get(clientHash string) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[clientHash]
	if !ok {
		return nil, newError(CodeClientNotSubscribed, "no subscription for client hash %q", clientHash)
	}
	return sub, nil
}

// Expire marks a subscription expired. The flag never reverts; repeated
// calls succeed.
func (r *Registry) Expire(clientHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[clientHash]
	if !ok {
		return newError(CodeSubscriptionNotFound, "no subscription for client hash %q", clientHash)
	}
	sub.expired = true
	return nil
}

// IsExpired reports the expiry flag for a subscription.
func (r *Registry) IsExpired(clientHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[clientHash]
	if !ok {
		return false, newError(CodeClientNotSubscribed, "no subscription for client hash %q", clientHash)
	}
	return sub.expired, nil
}

// Count returns the number of stored subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
