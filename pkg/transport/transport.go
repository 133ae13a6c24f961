// Package transport is the narrow collaborator the session talks through:
// short-lived HTTP request/response calls plus an upgradable WebSocket
// stream. The default implementation rides net/http and gorilla/websocket.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed signals that the peer closed the stream. The session's receive
// loop distinguishes it from other transport failures to tell a graceful
// shutdown apart from a dropped connection.
var ErrClosed = errors.New("stream closed by peer")

// Response is one HTTP exchange's outcome.
type Response struct {
	StatusCode int
	Body       []byte
}

// Stream is a long-lived frame-delivering connection.
type Stream interface {
	// Recv blocks for the next text frame. It returns ErrClosed once the
	// peer has closed the connection.
	Recv() ([]byte, error)
	Close() error
}

// Client is the request/response plus upgrade surface the session consumes.
type Client interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, body []byte) (*Response, error)
	// PostMultipart sends a prebuilt multipart body with the given content
	// type.
	PostMultipart(ctx context.Context, path, contentType string, body []byte) (*Response, error)
	// Upgrade switches the given path to a WebSocket stream. A handshake
	// that does not end in switched protocols is an error.
	Upgrade(ctx context.Context, path string) (Stream, error)
}

// HTTPClient is the default Client over one host/port pair. Every call opens
// its own short-lived connection; concurrent calls do not contend on a
// shared handle.
type HTTPClient struct {
	baseURL string
	wsURL   string
	http    *http.Client
	dialer  *websocket.Dialer
}

// NewHTTPClient builds a client for host:port, speaking https/wss when
// secure is set. timeout bounds each request/response call; 0 means no
// client-side bound beyond the context's.
func NewHTTPClient(host string, port int, secure bool, timeout time.Duration) *HTTPClient {
	scheme, wsScheme := "http", "ws"
	if secure {
		scheme, wsScheme = "https", "wss"
	}
	return &HTTPClient{
		baseURL: fmt.Sprintf("%s://%s:%d", scheme, host, port),
		wsURL:   fmt.Sprintf("%s://%s:%d", wsScheme, host, port),
		http:    &http.Client{Timeout: timeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *HTTPClient) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) PostMultipart(ctx context.Context, path, contentType string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *HTTPClient) Upgrade(ctx context.Context, path string) (Stream, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL+path, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake returned %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return &wsStream{conn: conn}, nil
}

// wsStream adapts a gorilla connection to the Stream contract.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv() ([]byte, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if isClosed(err) {
				return nil, ErrClosed
			}
			return nil, err
		}
		// The event feed is text frames; skip anything else.
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func isClosed(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

func (s *wsStream) Close() error {
	// Best effort close handshake; the peer may already be gone.
	deadline := time.Now().Add(5 * time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}
