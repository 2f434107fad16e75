package client

// ws_client.go = live notification channel for the CLI.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"taskhub/internal/reconcile"
)

const (
	notificationEvent = "notification"
	wsPath            = "/ws/notifications"

	writeWait = 10 * time.Second
	// the server pings every 54s
	readWait = 70 * time.Second

	reconnectRetries  = 5
	reconnectInterval = 2 * time.Second
)

// ErrRejected is returned when the server closes the handshake for missing identity.
var ErrRejected = errors.New("live channel rejected the connection")

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Subscriber keeps a websocket open to the notification channel and hands every pushed
// notification to a callback. Dropped connections are redialled with exponential
// backoff; a successful connection resets the retry budget.
type Subscriber struct {
	endpoint        string
	token           string
	dialer          *websocket.Dialer
	maxRetries      uint64
	initialInterval time.Duration
	logger          *slog.Logger

	// OnConnect, if set, is called after every successful dial.
	OnConnect func()
}

// NewSubscriber derives the ws:// (or wss://) endpoint from the API base URL.
func NewSubscriber(apiURL, token string, logger *slog.Logger) (*Subscriber, error) {
	endpoint, err := websocketURL(apiURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		endpoint:        endpoint,
		token:           token,
		dialer:          &websocket.Dialer{HandshakeTimeout: writeWait},
		maxRetries:      reconnectRetries,
		initialInterval: reconnectInterval,
		logger:          logger,
	}, nil
}

func websocketURL(apiURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid API URL %q: unsupported scheme", apiURL)
	}
	u.Path += wsPath
	return u.String(), nil
}

// Run blocks until ctx is cancelled, the server rejects the identity, or reconnecting
// gives up. A cancelled ctx returns nil.
func (s *Subscriber) Run(ctx context.Context, onPush func(reconcile.Item)) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialInterval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx)

	err := backoff.RetryNotify(func() error {
		err := s.session(ctx, onPush, retry.Reset)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, ErrRejected) {
			return backoff.Permanent(err)
		}
		return err
	}, retry, func(err error, wait time.Duration) {
		s.logger.Warn("live_channel_reconnecting", "error", err, "wait", wait)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session dials once and reads frames until the connection drops.
func (s *Subscriber) session(ctx context.Context, onPush func(reconcile.Item), connected func()) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, resp, err := s.dialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return ErrRejected
		}
		return fmt.Errorf("dial %s: %w", s.endpoint, err)
	}
	defer conn.Close()

	connected()
	s.logger.Info("live_channel_connected", "endpoint", s.endpoint)
	if s.OnConnect != nil {
		s.OnConnect()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-stop:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return ErrRejected
			}
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		item, ok := s.decode(payload)
		if ok {
			onPush(item)
		}
	}
}

func (s *Subscriber) decode(payload []byte) (reconcile.Item, bool) {
	var frame wireFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		s.logger.Warn("live_frame_invalid", "error", err)
		return reconcile.Item{}, false
	}
	if frame.Event != notificationEvent {
		s.logger.Debug("live_frame_ignored", "event", frame.Event)
		return reconcile.Item{}, false
	}
	var item reconcile.Item
	if err := json.Unmarshal(frame.Data, &item); err != nil {
		s.logger.Warn("live_frame_invalid", "event", frame.Event, "error", err)
		return reconcile.Item{}, false
	}
	return item, true
}
