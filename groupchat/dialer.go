package groupchat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"

	"github.com/eduflow/eduflow-chat-sdk-go/groupchat/internal"
)

// FrameConn is one open duplex connection carrying JSON frames.
type FrameConn interface {
	ReadFrame(ctx context.Context) (json.RawMessage, error)
	WriteFrame(ctx context.Context, v any) error
	Ping(ctx context.Context) error
	Close(reason string) error
}

// Dialer opens the live connection of a group.
type Dialer interface {
	Dial(ctx context.Context, groupID string) (FrameConn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, groupID string) (FrameConn, error)

func (f DialerFunc) Dial(ctx context.Context, groupID string) (FrameConn, error) {
	return f(ctx, groupID)
}

// WebsocketDialer dials Config.ChannelURL with the access token as cookie and
// bearer header.
type WebsocketDialer struct {
	cfg   Config
	token func() string
}

// NewWebsocketDialer returns a dialer for cfg. token is consulted on every
// dial so refreshed tokens are picked up; nil uses cfg.AccessToken.
func NewWebsocketDialer(cfg Config, token func() string) *WebsocketDialer {
	if token == nil {
		token = func() string { return cfg.AccessToken }
	}
	return &WebsocketDialer{cfg: cfg, token: token}
}

func (d *WebsocketDialer) Dial(ctx context.Context, groupID string) (FrameConn, error) {
	if d.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
		defer cancel()
	}

	header := http.Header{}
	if tok := d.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
		header.Set("Cookie", (&http.Cookie{Name: d.cfg.AccessCookie, Value: tok}).String())
	}

	ws, resp, err := websocket.Dial(ctx, d.cfg.channelURL(groupID), &websocket.DialOptions{HTTPHeader: header})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if d.cfg.MaxFrameBytes > 0 {
		ws.SetReadLimit(d.cfg.MaxFrameBytes)
	}
	return internal.NewConn(ws, d.cfg.ReadTimeout, d.cfg.WriteTimeout), nil
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// isRemoteClose reports a close initiated by the server.
func isRemoteClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
