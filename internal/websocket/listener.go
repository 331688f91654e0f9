package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var ErrNoURL = errors.New("websocket: push url missing")

// Listener dials the backend push channel.
type Listener struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewListener(url string, header http.Header, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		log: log,
	}
}

func (l *Listener) Connect(ctx context.Context) (*Stream, error) {
	if l.url == "" {
		return nil, ErrNoURL
	}

	conn, resp, err := l.dialer.DialContext(ctx, l.url, l.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket: dial %s: %s: %w", l.url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket: dial %s: %w", l.url, err)
	}

	l.log.Debug("Push channel connected", "url", l.url)
	return &Stream{conn: conn, log: l.log}, nil
}

// Stream is one open push connection. Next must not be called concurrently.
type Stream struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// Next blocks until the next update signal. Any error means the connection
// is gone.
func (s *Stream) Next() error {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if IsUpdate(msg) {
			return nil
		}
		s.log.Debug("Ignoring push message", "message", string(msg))
	}
}

func (s *Stream) Close() error {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return s.conn.Close()
}

// IsUpdate accepts the bare token and its JSON envelope {"type":"update"}.
func IsUpdate(msg []byte) bool {
	msg = bytes.TrimSpace(msg)
	if string(msg) == UpdateMessage || string(msg) == `"`+UpdateMessage+`"` {
		return true
	}
	if len(msg) == 0 || msg[0] != '{' {
		return false
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return false
	}
	return envelope.Type == UpdateMessage
}
