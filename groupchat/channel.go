package groupchat

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LiveChannel is the duplex connection of one group. Inbound frames are
// read by a single goroutine and dispatched in arrival order.
type LiveChannel struct {
	cfg        Config
	groupID    string
	self       Identity
	dialer     Dialer
	logger     Logger
	metrics    *Metrics
	dispatcher Dispatcher
	writeCh    chan OutboundFrame

	mu     sync.Mutex
	state  ChannelState
	conn   FrameConn
	cancel context.CancelFunc
	done   <-chan struct{} // closed when conn stops

	hookMu  sync.RWMutex
	onState func(StateEvent)
}

// NewLiveChannel constructs a channel for groupID. Nothing is dialed until Open.
func NewLiveChannel(cfg Config, groupID string, self Identity, dialer Dialer) *LiveChannel {
	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = 16
	}
	if dialer == nil {
		dialer = NewWebsocketDialer(cfg, nil)
	}
	return &LiveChannel{
		cfg:     cfg,
		groupID: groupID,
		self:    self,
		dialer:  dialer,
		logger:  noopLogger{},
		writeCh: make(chan OutboundFrame, buf),
	}
}

// SetLogger overrides logger (optional).
func (c *LiveChannel) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// SetMetrics attaches Prometheus collectors (optional).
func (c *LiveChannel) SetMetrics(m *Metrics) { c.metrics = m }

// OnText registers callback for text frames.
func (c *LiveChannel) OnText(fn func(TextMessage)) { c.dispatcher.SetOnText(fn) }

// OnImage registers callback for image frames.
func (c *LiveChannel) OnImage(fn func(ImageMessage)) { c.dispatcher.SetOnImage(fn) }

// OnError registers callback for protocol and connection errors.
func (c *LiveChannel) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// OnStateChanged registers callback for state transitions.
func (c *LiveChannel) OnStateChanged(fn func(StateEvent)) {
	c.hookMu.Lock()
	c.onState = fn
	c.hookMu.Unlock()
}

// GroupID returns the group the channel is bound to.
func (c *LiveChannel) GroupID() string { return c.groupID }

// State returns the current channel state.
func (c *LiveChannel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials the server and starts the read and write pumps. It is valid
// from Idle and Failed; a closed channel cannot be reopened.
func (c *LiveChannel) Open(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case ChannelOpen, ChannelConnecting:
		c.mu.Unlock()
		return NewError(ErrorAlreadyOpen, "channel already open")
	case ChannelClosed:
		c.mu.Unlock()
		return NewError(ErrorChannelClosed, "channel closed")
	}
	ev := c.setStateLocked(ChannelConnecting, nil)
	c.mu.Unlock()
	c.emit(ev)

	conn, err := c.dialer.Dial(ctx, c.groupID)

	c.mu.Lock()
	if c.state != ChannelConnecting {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close("channel closed")
		}
		return NewError(ErrorChannelClosed, "channel closed while connecting")
	}
	if err != nil {
		werr := WrapError(ErrorChannel, "open channel", err)
		ev = c.setStateLocked(ChannelFailed, werr)
		c.mu.Unlock()
		c.emit(ev)
		return werr
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.done = runCtx.Done()
	ev = c.setStateLocked(ChannelOpen, nil)
	go c.readLoop(runCtx, conn)
	go c.writeLoop(runCtx, conn)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(runCtx, conn)
	}
	c.mu.Unlock()

	c.emit(ev)
	c.logger.Info("channel open", map[string]any{"group_id": c.groupID})
	return nil
}

// Send queues a chat message. Delivery is not acknowledged: the message
// shows up when the server echoes it back.
func (c *LiveChannel) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return NewError(ErrorInvalidMessage, "empty message")
	}
	c.mu.Lock()
	state, done := c.state, c.done
	c.mu.Unlock()
	if state != ChannelOpen {
		return NewError(ErrorNotConnected, "channel not open")
	}

	select {
	case c.writeCh <- OutboundFrame{Message: text, Username: c.self.Username}:
		c.metrics.messageSent()
		return nil
	case <-done:
		return NewError(ErrorNotConnected, "connection lost before send")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the channel down. It is idempotent and never fails.
func (c *LiveChannel) Close() error {
	c.mu.Lock()
	if c.state == ChannelClosed {
		c.mu.Unlock()
		return nil
	}
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	ev := c.setStateLocked(ChannelClosed, nil)
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close("client close"); err != nil {
			c.logger.Debug("close connection", map[string]any{"group_id": c.groupID, "error": err.Error()})
		}
	}
	if cancel != nil {
		cancel()
	}
	c.emit(ev)
	return nil
}

func (c *LiveChannel) readLoop(ctx context.Context, conn FrameConn) {
	for {
		raw, err := conn.ReadFrame(ctx)
		if err != nil {
			if isExpectedDisconnect(ctx, err) {
				return
			}
			c.fail(conn, err)
			return
		}
		if err := c.dispatcher.Dispatch(raw); err != nil {
			c.metrics.protocolError()
			c.logger.Warn("dropped malformed frame", map[string]any{"group_id": c.groupID, "error": err.Error()})
		}
	}
}

func (c *LiveChannel) writeLoop(ctx context.Context, conn FrameConn) {
	for {
		select {
		case frame := <-c.writeCh:
			if err := conn.WriteFrame(ctx, frame); err != nil {
				if isExpectedDisconnect(ctx, err) {
					return
				}
				c.logger.Warn("write loop exit", map[string]any{"group_id": c.groupID, "error": err.Error()})
				c.fail(conn, err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *LiveChannel) pingLoop(ctx context.Context, conn FrameConn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				if isExpectedDisconnect(ctx, err) {
					return
				}
				c.fail(conn, WrapError(ErrorTimeout, "heartbeat failed", err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// fail moves an open channel to Failed. Errors from a connection that is no
// longer current are ignored.
func (c *LiveChannel) fail(conn FrameConn, err error) {
	c.mu.Lock()
	if c.conn != conn || c.state != ChannelOpen {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.conn, c.cancel = nil, nil

	reason := "connection lost"
	if isRemoteClose(err) {
		reason = "server closed connection"
	}
	werr := err
	if !IsChannelError(err) {
		werr = WrapError(ErrorChannel, reason, err)
	}
	ev := c.setStateLocked(ChannelFailed, werr)
	c.mu.Unlock()

	cancel()
	_ = conn.Close(reason)
	c.logger.Warn("channel failed", map[string]any{"group_id": c.groupID, "error": werr.Error()})
	c.emit(ev)
	c.dispatcher.fireError(werr)
}

func (c *LiveChannel) setStateLocked(next ChannelState, err error) StateEvent {
	ev := StateEvent{GroupID: c.groupID, OldState: c.state, NewState: next, Error: err}
	c.state = next
	return ev
}

func (c *LiveChannel) emit(ev StateEvent) {
	c.metrics.channelState(ev.NewState)
	c.hookMu.RLock()
	fn := c.onState
	c.hookMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
