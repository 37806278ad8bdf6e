package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

// Subscriber holds the receive-only push connection to the broker.
type Subscriber struct {
	url    string
	dialer *websocket.Dialer
}

// NewSubscriber prepares a subscriber for the broker at baseURL.
func NewSubscriber(baseURL string, handshakeTimeout time.Duration) (*Subscriber, error) {
	u, err := PushURL(baseURL)
	if err != nil {
		return nil, err
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &Subscriber{
		url:    u,
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}, nil
}

// Listen connects and calls handle for every payload frame until the
// connection fails or ctx is done. It always returns a non-nil error; a
// dropped connection is a transport error.
func (s *Subscriber) Listen(ctx context.Context, handle func(payload string)) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return domain.Wrap(domain.KindTransport, "dial push channel", err)
	}
	defer conn.Close()

	observability.WithField("url", s.url).Info("Connected to relay broker")

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.Wrap(domain.KindTransport, "read push channel", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			observability.GetLogger().Warn("Ignoring empty push frame")
			continue
		}
		handle(string(data))
	}
}

func (s *Subscriber) String() string {
	return fmt.Sprintf("push(%s)", s.url)
}
