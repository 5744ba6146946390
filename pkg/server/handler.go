package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getpushd/pushd/pkg/api/types"
	"github.com/getpushd/pushd/pkg/httputil"
	"github.com/getpushd/pushd/pkg/metrics"
	"github.com/getpushd/pushd/pkg/webpush"
)

const errCodeMalformedRequest = "malformed_request"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, types.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	startedAt := s.startTime
	s.mu.RUnlock()

	httputil.WriteOK(w, types.StatusResponse{
		Status:        "running",
		ID:            s.id,
		Version:       s.version,
		Port:          s.Port(),
		Uptime:        s.Uptime(),
		Subscriptions: s.engine.Registry().Count(),
		Messages:      s.engine.MessageCount(),
		StartedAt:     startedAt,
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	options, err := parseSubscribeOptions(r)
	if err != nil {
		httputil.WriteBadRequest(w, errCodeMalformedRequest, err.Error())
		return
	}
	info, err := s.engine.Subscribe(options)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	metrics.SubscriptionsCreated.Inc()
	httputil.WriteOK(w, types.SubscribeResponse{
		Endpoint: info.Endpoint,
		Keys: types.SubscriptionKeys{
			P256DH: info.P256DH,
			Auth:   info.Auth,
		},
		ClientHash: info.ClientHash,
	})
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	req, err := decodeClientRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, errCodeMalformedRequest, err.Error())
		return
	}
	if err := s.engine.ExpireSubscription(req.ClientHash); err != nil {
		s.writeEngineError(w, err)
		return
	}
	metrics.SubscriptionsExpired.Inc()
	httputil.WriteOK(w, types.MessageResponse{Message: "subscription expired"})
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	req, err := decodeClientRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, errCodeMalformedRequest, err.Error())
		return
	}
	messages, err := s.engine.GetNotifications(req.ClientHash)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	httputil.WriteOK(w, types.NotificationsResponse{Messages: messages})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	clientHash := r.PathValue("clientHash")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		httputil.WriteBadRequest(w, errCodeMalformedRequest, "could not read notification body")
		return
	}

	headers := webpush.Headers{
		Encoding:      r.Header.Get("Content-Encoding"),
		TTL:           r.Header.Get("TTL"),
		Authorization: r.Header.Get("Authorization"),
		Encryption:    r.Header.Get("Encryption"),
		CryptoKey:     r.Header.Get("Crypto-Key"),
	}

	if err := s.engine.HandleNotification(clientHash, headers, body); err != nil {
		if code := webpush.ErrorCode(err); code != "" {
			metrics.NotificationsRejected.WithLabelValues(code).Inc()
		}
		s.writeEngineError(w, err)
		return
	}
	metrics.NotificationsStored.Inc()
	httputil.WriteCreated(w, types.MessageResponse{Message: "notification stored"})
}

// writeEngineError maps engine error kinds to wire statuses: expired
// subscriptions are Gone, unknown clients are Not Found, every other
// validation failure is a Bad Request.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var werr *webpush.Error
	if !errors.As(err, &werr) {
		s.log.Error("engine error", "error", err)
		httputil.WriteInternalError(w, "internal_error", "unexpected server error")
		return
	}
	switch werr.Code {
	case webpush.CodeSubscriptionExpired:
		httputil.WriteGone(w, werr.Code, werr.Message)
	case webpush.CodeClientNotSubscribed, webpush.CodeSubscriptionNotFound:
		httputil.WriteNotFound(w, werr.Code, werr.Message)
	default:
		httputil.WriteBadRequest(w, werr.Code, werr.Message)
	}
}

// parseSubscribeOptions accepts either a JSON object of string options or a
// form body. An empty body subscribes with defaults.
func parseSubscribeOptions(r *http.Request) (map[string]string, error) {
	options := make(map[string]string)
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&options); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.New("subscribe body must be a JSON object of string options")
		}
		return options, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.New("could not parse subscribe form body")
	}
	for name, values := range r.PostForm {
		if len(values) > 0 {
			options[name] = values[0]
		}
	}
	return options, nil
}

func decodeClientRequest(r *http.Request) (*types.ClientRequest, error) {
	var req types.ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("request body must be a JSON object with a clientHash field")
	}
	if req.ClientHash == "" {
		return nil, errors.New("clientHash must not be empty")
	}
	return &req, nil
}
