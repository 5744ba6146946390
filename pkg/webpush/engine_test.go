package webpush

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine("http://localhost:4292")
}

func subscribe(t *testing.T, e *Engine, options map[string]string) *SubscriptionInfo {
	t.Helper()
	info, err := e.Subscribe(options)
	require.NoError(t, err)
	return info
}

func TestHandleNotificationAESGCM(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)

	dh, salt, body := encryptAESGCM(t, info, "hello")
	err := e.HandleNotification(info.ClientHash, aesgcmHeaders(dh, salt), body)
	require.NoError(t, err)

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, messages)
}

func TestHandleNotificationAESGCMWithVAPID(t *testing.T) {
	e := newTestEngine(t)
	vapidKey := newVAPIDKey(t)
	serverKey := vapidPublicKey(t, vapidKey)
	info := subscribe(t, e, map[string]string{optionApplicationServerKey: serverKey})

	dh, salt, body := encryptAESGCM(t, info, "vapid payload")
	h := Headers{
		Encoding:      EncodingAESGCM,
		TTL:           "60",
		Authorization: "WebPush " + signVAPIDToken(t, vapidKey),
		CryptoKey:     "dh=" + dh + ";p256ecdsa=" + serverKey,
		Encryption:    "salt=" + salt,
	}
	require.NoError(t, e.HandleNotification(info.ClientHash, h, body))

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"vapid payload"}, messages)
}

func TestHandleNotificationAES128GCM(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)

	body := encryptAES128GCM(t, info, "modern encoding")
	h := Headers{Encoding: EncodingAES128GCM, TTL: "0"}
	require.NoError(t, e.HandleNotification(info.ClientHash, h, body))

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"modern encoding"}, messages)
}

func TestHandleNotificationAES128GCMWithVAPID(t *testing.T) {
	e := newTestEngine(t)
	vapidKey := newVAPIDKey(t)
	serverKey := vapidPublicKey(t, vapidKey)
	info := subscribe(t, e, map[string]string{optionApplicationServerKey: serverKey})

	body := encryptAES128GCM(t, info, "signed push")
	h := Headers{
		Encoding:      EncodingAES128GCM,
		TTL:           "60",
		Authorization: "vapid t=" + signVAPIDToken(t, vapidKey) + ",k=" + serverKey,
	}
	require.NoError(t, e.HandleNotification(info.ClientHash, h, body))

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"signed push"}, messages)
}

func TestHandleNotificationSequentialOrder(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)

	for _, msg := range []string{"first", "second", "third"} {
		dh, salt, body := encryptAESGCM(t, info, msg)
		require.NoError(t, e.HandleNotification(info.ClientHash, aesgcmHeaders(dh, salt), body))
	}

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, messages)
	assert.Equal(t, 3, e.MessageCount())
}

func TestHandleNotificationUnknownClient(t *testing.T) {
	e := newTestEngine(t)
	err := e.HandleNotification("deadbeef", Headers{Encoding: EncodingAESGCM, TTL: "60"}, nil)
	requireCode(t, err, CodeClientNotSubscribed)
}

func TestHandleNotificationExpired(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)
	require.NoError(t, e.ExpireSubscription(info.ClientHash))

	// A fully valid notification still fails once the subscription expired.
	dh, salt, body := encryptAESGCM(t, info, "too late")
	err := e.HandleNotification(info.ClientHash, aesgcmHeaders(dh, salt), body)
	requireCode(t, err, CodeSubscriptionExpired)

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestHandleNotificationTTL(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)

	tests := []struct {
		name string
		ttl  string
		code string
	}{
		{name: "missing", ttl: "", code: CodeInvalidTTL},
		{name: "non numeric", ttl: "soon", code: CodeInvalidTTL},
		{name: "float", ttl: "1.5", code: CodeInvalidTTL},
		{name: "zero", ttl: "0", code: ""},
		{name: "positive", ttl: "2419200", code: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dh, salt, body := encryptAESGCM(t, info, "ttl "+tt.name)
			h := aesgcmHeaders(dh, salt)
			h.TTL = tt.ttl
			err := e.HandleNotification(info.ClientHash, h, body)
			if tt.code == "" {
				assert.NoError(t, err)
			} else {
				requireCode(t, err, tt.code)
			}
		})
	}
}

func TestHandleNotificationUnsupportedEncoding(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)
	err := e.HandleNotification(info.ClientHash, Headers{Encoding: "gzip", TTL: "60"}, nil)
	requireCode(t, err, CodeUnsupportedEncoding)
}

func TestHandleNotificationMissingAuthorization(t *testing.T) {
	e := newTestEngine(t)
	vapidKey := newVAPIDKey(t)
	info := subscribe(t, e, map[string]string{optionApplicationServerKey: vapidPublicKey(t, vapidKey)})

	dh, salt, body := encryptAESGCM(t, info, "unauthenticated")
	err := e.HandleNotification(info.ClientHash, aesgcmHeaders(dh, salt), body)
	requireCode(t, err, CodeMissingAuthorization)
}

func TestHandleNotificationInvalidToken(t *testing.T) {
	e := newTestEngine(t)
	vapidKey := newVAPIDKey(t)
	serverKey := vapidPublicKey(t, vapidKey)
	info := subscribe(t, e, map[string]string{optionApplicationServerKey: serverKey})

	// Token signed by a different key than the one registered.
	otherKey := newVAPIDKey(t)
	dh, salt, body := encryptAESGCM(t, info, "forged")
	h := Headers{
		Encoding:      EncodingAESGCM,
		TTL:           "60",
		Authorization: "WebPush " + signVAPIDToken(t, otherKey),
		CryptoKey:     "dh=" + dh + ";p256ecdsa=" + serverKey,
		Encryption:    "salt=" + salt,
	}
	err := e.HandleNotification(info.ClientHash, h, body)
	requireCode(t, err, CodeInvalidToken)
}

func TestHandleNotificationMismatchedServerKey(t *testing.T) {
	e := newTestEngine(t)
	vapidKey := newVAPIDKey(t)
	serverKey := vapidPublicKey(t, vapidKey)
	info := subscribe(t, e, map[string]string{optionApplicationServerKey: serverKey})

	otherKey := vapidPublicKey(t, newVAPIDKey(t))
	dh, salt, body := encryptAESGCM(t, info, "wrong sender")
	h := Headers{
		Encoding:      EncodingAESGCM,
		TTL:           "60",
		Authorization: "WebPush " + signVAPIDToken(t, vapidKey),
		CryptoKey:     "dh=" + dh + ";p256ecdsa=" + otherKey,
		Encryption:    "salt=" + salt,
	}
	err := e.HandleNotification(info.ClientHash, h, body)
	requireCode(t, err, CodeInvalidCryptoKey)
}

func TestHandleNotificationVapidAuthorizationMismatch(t *testing.T) {
	e := newTestEngine(t)
	vapidKey := newVAPIDKey(t)
	serverKey := vapidPublicKey(t, vapidKey)
	info := subscribe(t, e, map[string]string{optionApplicationServerKey: serverKey})

	body := encryptAES128GCM(t, info, "wrong k")
	h := Headers{
		Encoding:      EncodingAES128GCM,
		TTL:           "60",
		Authorization: "vapid t=" + signVAPIDToken(t, vapidKey) + ",k=" + vapidPublicKey(t, newVAPIDKey(t)),
	}
	err := e.HandleNotification(info.ClientHash, h, body)
	requireCode(t, err, CodeInvalidCryptoKey)
}

func TestHandleNotificationMalformedCryptoKey(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)
	_, salt, body := encryptAESGCM(t, info, "ignored")

	tests := []struct {
		name      string
		cryptoKey string
	}{
		{name: "empty", cryptoKey: ""},
		{name: "no dh entry", cryptoKey: "p256dh=abc"},
		{name: "bad base64", cryptoKey: "dh=!!!"},
		{name: "wrong length", cryptoKey: "dh=" + encodeBase64URL([]byte{0x04, 0x01, 0x02})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := aesgcmHeaders("", salt)
			h.CryptoKey = tt.cryptoKey
			err := e.HandleNotification(info.ClientHash, h, body)
			requireCode(t, err, CodeInvalidCryptoKey)
		})
	}
}

func TestHandleNotificationMissingSalt(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)
	dh, _, body := encryptAESGCM(t, info, "ignored")

	h := aesgcmHeaders(dh, "")
	h.Encryption = "rs=4096"
	err := e.HandleNotification(info.ClientHash, h, body)
	requireCode(t, err, CodeInvalidCryptoKey)
}

func TestHandleNotificationDecryptionFailure(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)

	// Body from a different subscription's keys cannot authenticate.
	other := subscribe(t, e, nil)
	dh, salt, body := encryptAESGCM(t, other, "misdirected")
	err := e.HandleNotification(info.ClientHash, aesgcmHeaders(dh, salt), body)
	requireCode(t, err, CodeDecryptionFailed)

	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Empty(t, messages, "failed notifications must not be stored")
}

func TestHandleNotificationConcurrent(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dh, salt, body := encryptAESGCM(t, info, fmt.Sprintf("message %d", i))
			errs[i] = e.HandleNotification(info.ClientHash, aesgcmHeaders(dh, salt), body)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "notification %d", i)
	}
	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Len(t, messages, n)
}

func TestGetNotificationsUnknownClient(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetNotifications("deadbeef")
	requireCode(t, err, CodeClientNotSubscribed)
}

func TestGetNotificationsEmpty(t *testing.T) {
	e := newTestEngine(t)
	info := subscribe(t, e, nil)
	messages, err := e.GetNotifications(info.ClientHash)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
