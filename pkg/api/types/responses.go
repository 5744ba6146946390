// Package types provides the API types shared by the pushd server and the
// CLI client, ensuring a consistent wire contract.
package types

import "time"

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SubscriptionKeys mirrors the keys object a browser exposes on a
// PushSubscription.
type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribeResponse is returned from POST /subscribe.
type SubscribeResponse struct {
	Endpoint   string           `json:"endpoint"`
	Keys       SubscriptionKeys `json:"keys"`
	ClientHash string           `json:"clientHash"`
}

// ClientRequest addresses one subscription by its client hash.
type ClientRequest struct {
	ClientHash string `json:"clientHash"`
}

// NotificationsResponse is returned from POST /get-notifications.
type NotificationsResponse struct {
	Messages []string `json:"messages"`
}

// MessageResponse is a simple message body.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the liveness check body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse is the detailed server status body.
type StatusResponse struct {
	Status        string    `json:"status"`
	ID            string    `json:"id,omitempty"`
	Version       string    `json:"version,omitempty"`
	Port          int       `json:"port"`
	Uptime        int64     `json:"uptime"`
	Subscriptions int       `json:"subscriptions"`
	Messages      int       `json:"messages"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
}
