// Package mirai binds one bot account to a remote Mirai HTTP API deployment:
// it authenticates the session, issues command calls, and consumes the live
// event stream. All higher-level operations funnel through Bot.Call.
package mirai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mirai-sdk/go-mirai/pkg/event"
	"github.com/mirai-sdk/go-mirai/pkg/transport"
)

// Request methods accepted by Call. Anything else is rejected before the
// transport is touched.
const (
	MethodPost = "post"
	MethodGet  = "get"
)

// Handler receives each decoded event along with the raw frame it came from.
// The event must not be retained past the handler's return.
type Handler func(ev event.Event, raw []byte)

// Bot is one authenticated session. The session key and account id are set
// once by Login and immutable afterwards; the streaming connection handle is
// owned by SubscribeEvents and ShutDown.
type Bot struct {
	tr      transport.Client
	authKey string
	qq      int64
	session string
	log     *zap.Logger

	closing atomic.Bool

	mu     sync.Mutex
	stream transport.Stream

	onDecodeError func(error)
}

// Option configures a Bot at construction.
type Option func(*Bot)

// WithLogger routes the bot's structured logs to l. The default logger
// discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// WithDecodeErrorHandler installs a hook invoked for every frame the event
// factory rejects. The default logs the error and keeps the stream running.
func WithDecodeErrorHandler(fn func(error)) Option {
	return func(b *Bot) { b.onDecodeError = fn }
}

// New builds an unauthenticated bot for the given account. Call Login before
// anything else.
func New(tr transport.Client, authKey string, qq int64, opts ...Option) *Bot {
	b := &Bot{tr: tr, authKey: authKey, qq: qq, log: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the bot's account number.
func (b *Bot) ID() int64 { return b.qq }

// SessionKey returns the opaque token captured at login, empty before Login
// succeeds.
func (b *Bot) SessionKey() string { return b.session }

// apiResponse is the common JSON envelope of non-streaming responses.
type apiResponse struct {
	Code      int             `json:"code"`
	Msg       string          `json:"msg"`
	Session   string          `json:"session"`
	MessageID int64           `json:"messageId"`
	Data      json.RawMessage `json:"data"`
}

// Login performs the four-step handshake: capability probe, auth, session
// binding to the account, and enabling the websocket feed.
func (b *Bot) Login(ctx context.Context) error {
	resp, err := b.tr.Get(ctx, "/about")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	var about apiResponse
	if err := json.Unmarshal(resp.Body, &about); err != nil || about.Code != CodeSuccess {
		return fmt.Errorf("%w: it does not look like a Mirai HTTP API", ErrInvalidRespond)
	}

	body, _ := json.Marshal(map[string]any{"authKey": b.authKey})
	resp, err = b.tr.Post(ctx, "/auth", body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	var auth apiResponse
	if err := json.Unmarshal(resp.Body, &auth); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(auth.Code, auth.Msg, "failed to auth: "); err != nil {
		return err
	}
	b.session = auth.Session
	b.log.Debug("authenticated", zap.Int64("qq", b.qq))

	body, _ = json.Marshal(map[string]any{"sessionKey": b.session, "qq": b.qq})
	resp, err = b.tr.Post(ctx, "/verify", body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	var verify apiResponse
	if err := json.Unmarshal(resp.Body, &verify); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(verify.Code, verify.Msg,
		fmt.Sprintf("failed to bind session to QQ(%d): ", b.qq)); err != nil {
		return err
	}

	if _, err := b.post(ctx, "/config", map[string]any{"enableWebsocket": true},
		"failed to enable websocket: "); err != nil {
		return err
	}
	b.log.Info("session established", zap.Int64("qq", b.qq))
	return nil
}

// Call is the single choke point for command calls. post JSON-encodes params
// with the session key injected; get appends them as a query string. The raw
// response body comes back undecoded.
func (b *Bot) Call(ctx context.Context, path string, params map[string]any, method string) (json.RawMessage, error) {
	var (
		resp *transport.Response
		err  error
	)
	switch method {
	case MethodPost:
		body := make(map[string]any, len(params)+1)
		for k, v := range params {
			body[k] = v
		}
		body["sessionKey"] = b.session
		encoded, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("%w: %v", ErrIllegalParams, merr)
		}
		resp, err = b.tr.Post(ctx, path, encoded)
	case MethodGet:
		query := url.Values{"sessionKey": {b.session}}
		for k, v := range params {
			query.Set(k, fmt.Sprint(v))
		}
		resp, err = b.tr.Get(ctx, path+"?"+query.Encode())
	default:
		return nil, fmt.Errorf("%w: unknown request method %q", ErrIllegalParams, method)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return resp.Body, nil
}

// post issues a session-scoped POST and classifies the wire status, with
// prefix giving the failure its operation context.
func (b *Bot) post(ctx context.Context, path string, params map[string]any, prefix string) (*apiResponse, error) {
	body, err := b.Call(ctx, path, params, MethodPost)
	if err != nil {
		return nil, err
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(parsed.Code, parsed.Msg, prefix); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Post issues a checked session-scoped POST and returns the raw body. It is
// the funnel event quick actions respond through.
func (b *Bot) Post(ctx context.Context, path string, params map[string]any) (json.RawMessage, error) {
	body, err := b.Call(ctx, path, params, MethodPost)
	if err != nil {
		return nil, err
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRespond, err)
	}
	if err := ClassifyCode(parsed.Code, parsed.Msg, "request to "+path+" failed: "); err != nil {
		return nil, err
	}
	return body, nil
}

func (b *Bot) sessionQuery() string {
	return "?" + url.Values{"sessionKey": {b.session}}.Encode()
}

// SubscribeEvents opens the all-categories stream and runs the receive loop
// in its own goroutine: each frame decodes through the event factory and is
// handed to h in arrival order. The returned channel delivers at most one
// fatal loop error and is closed when the loop ends; a clean close after
// ShutDown delivers nothing.
func (b *Bot) SubscribeEvents(ctx context.Context, h Handler) (<-chan error, error) {
	stream, err := b.tr.Upgrade(ctx, "/all"+b.sessionQuery())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpgradeFailed, err)
	}
	b.mu.Lock()
	b.stream = stream
	b.mu.Unlock()

	errc := make(chan error, 1)
	go b.receiveLoop(stream, h, errc)
	return errc, nil
}

func (b *Bot) receiveLoop(stream transport.Stream, h Handler, errc chan<- error) {
	defer close(errc)
	for {
		frame, err := stream.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				if b.closing.Load() {
					b.log.Info("event stream closed")
					return
				}
				errc <- fmt.Errorf("%w: %v", ErrConnectionClosed, err)
				return
			}
			errc <- fmt.Errorf("unexpected error while receiving from websocket: %w", err)
			return
		}
		ev, err := event.Decode(frame, b)
		if err != nil {
			b.log.Error("event decode failed", zap.Error(err))
			if b.onDecodeError != nil {
				b.onDecodeError(err)
			}
			continue
		}
		h(ev, frame)
	}
}

// MessageStream opens a dedicated stream delivering only message events.
// The caller owns the returned stream and its receive loop.
func (b *Bot) MessageStream(ctx context.Context) (transport.Stream, error) {
	return b.upgrade(ctx, "/message"+b.sessionQuery())
}

// EventStream opens a dedicated stream delivering only non-message events.
func (b *Bot) EventStream(ctx context.Context) (transport.Stream, error) {
	return b.upgrade(ctx, "/event"+b.sessionQuery())
}

// AllStream opens a dedicated stream delivering every event category.
func (b *Bot) AllStream(ctx context.Context) (transport.Stream, error) {
	return b.upgrade(ctx, "/all"+b.sessionQuery())
}

func (b *Bot) upgrade(ctx context.Context, path string) (transport.Stream, error) {
	stream, err := b.tr.Upgrade(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpgradeFailed, err)
	}
	return stream, nil
}

// ShutDown marks the stream close as expected, closes it, and releases the
// bound session at the API. The receive loop treats the resulting disconnect
// as graceful.
func (b *Bot) ShutDown(ctx context.Context) error {
	b.closing.Store(true)
	b.mu.Lock()
	stream := b.stream
	b.stream = nil
	b.mu.Unlock()
	if stream != nil {
		if err := stream.Close(); err != nil {
			b.log.Warn("closing event stream", zap.Error(err))
		}
	}
	if _, err := b.post(ctx, "/release", map[string]any{"qq": b.qq},
		"failed to release session: "); err != nil {
		return err
	}
	b.log.Info("session released", zap.Int64("qq", b.qq))
	return nil
}
