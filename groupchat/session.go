package groupchat

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Deps are the collaborators of a Session. History is required; a nil
// Dialer dials Config.ChannelURL with Config.AccessToken.
type Deps struct {
	History   HistoryFetcher
	Dialer    Dialer
	Leaver    GroupLeaver
	Images    ImageSender
	Navigator Navigator
}

// Session drives the lifecycle of one group view: load history, seed the
// store, open the live channel, and tear everything down on leave or close.
//
// Each Start begins a new run. Work started by an earlier run (a slow history
// fetch, a late frame, a reconnect) is discarded once the run is over.
type Session struct {
	cfg      Config
	self     Identity
	deps     Deps
	logger   Logger
	metrics  *Metrics
	uploader *AttachmentUploader
	now      func() time.Time
	newID    func() string

	mu           sync.Mutex
	state        SessionState
	gen          uint64
	runCtx       context.Context
	cancel       context.CancelFunc
	groupID      string
	group        *Group
	store        *MessageStore
	channel      *LiveChannel
	reconnecting bool

	hookMu    sync.RWMutex
	onState   func(SessionStateEvent)
	onChannel func(StateEvent)
	onError   func(error)
	onHistory func([]Message)
	onMessage func(Message)
}

// NewSession returns an idle session for the user self.
func NewSession(cfg Config, self Identity, deps Deps) *Session {
	if deps.Dialer == nil {
		deps.Dialer = NewWebsocketDialer(cfg, nil)
	}
	return &Session{
		cfg:      cfg,
		self:     self,
		deps:     deps,
		logger:   noopLogger{},
		uploader: NewAttachmentUploader(deps.Images),
		now:      time.Now,
		newID:    uuid.NewString,
		store:    NewMessageStore(),
	}
}

// SetLogger overrides logger (optional).
func (s *Session) SetLogger(l Logger) {
	if l == nil {
		return
	}
	s.logger = l
	s.uploader.SetLogger(l)
}

// SetMetrics attaches Prometheus collectors (optional).
func (s *Session) SetMetrics(m *Metrics) {
	s.metrics = m
	s.uploader.SetMetrics(m)
}

// OnStateChanged registers callback for session state transitions.
func (s *Session) OnStateChanged(fn func(SessionStateEvent)) {
	s.hookMu.Lock()
	s.onState = fn
	s.hookMu.Unlock()
}

// OnChannelState registers callback for live channel state transitions of
// the current run.
func (s *Session) OnChannelState(fn func(StateEvent)) {
	s.hookMu.Lock()
	s.onChannel = fn
	s.hookMu.Unlock()
}

// OnError registers callback for errors that are not returned to a caller:
// uploads, leave, malformed frames and channel drops.
func (s *Session) OnError(fn func(error)) {
	s.hookMu.Lock()
	s.onError = fn
	s.hookMu.Unlock()
}

// OnHistory registers callback for the seeded history of each run.
func (s *Session) OnHistory(fn func([]Message)) {
	s.hookMu.Lock()
	s.onHistory = fn
	s.hookMu.Unlock()
}

// OnMessage registers callback for every message appended after the seed.
func (s *Session) OnMessage(fn func(Message)) {
	s.hookMu.Lock()
	s.onMessage = fn
	s.hookMu.Unlock()
}

// Self returns the current user.
func (s *Session) Self() Identity { return s.self }

// State returns the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GroupID returns the group of the current or last run.
func (s *Session) GroupID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupID
}

// ChannelState returns the state of the current live channel, Idle when
// none was opened yet and Closed after teardown.
func (s *Session) ChannelState() ChannelState {
	s.mu.Lock()
	ch, state := s.channel, s.state
	s.mu.Unlock()
	if ch != nil {
		return ch.State()
	}
	if state == SessionLeftOrClosed {
		return ChannelClosed
	}
	return ChannelIdle
}

// Group returns the group metadata once history has loaded.
func (s *Session) Group() (Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return Group{}, false
	}
	return *s.group, true
}

// Store returns the message store of the current run.
func (s *Session) Store() *MessageStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Messages returns a snapshot of the current run's messages.
func (s *Session) Messages() []Message { return s.Store().Snapshot() }

// Start begins a run for groupID, tearing down any previous run first. It
// returns once the channel is open, or with the FetchError or ChannelError
// that moved the session to Errored.
func (s *Session) Start(ctx context.Context, groupID string) error {
	if groupID == "" {
		return NewError(ErrorInvalidConfig, "group id is required")
	}
	if s.deps.History == nil {
		return NewError(ErrorInvalidConfig, "no history fetcher configured")
	}

	s.mu.Lock()
	oldCh, events := s.teardownLocked(false)
	s.channel = nil
	s.gen++
	gen := s.gen
	runCtx, cancel := context.WithCancel(context.Background())
	s.runCtx, s.cancel = runCtx, cancel
	s.groupID = groupID
	s.group = nil
	store := s.newStore()
	s.store = store
	if s.state != SessionIdle {
		events = append(events, s.setStateLocked(SessionIdle, nil))
	}
	events = append(events, s.setStateLocked(SessionLoading, nil))
	s.mu.Unlock()

	if oldCh != nil {
		_ = oldCh.Close()
	}
	s.emit(events...)
	s.logger.Info("session loading", map[string]any{"group_id": groupID})

	opCtx, stopOp := context.WithCancel(ctx)
	defer stopOp()
	stop := context.AfterFunc(runCtx, stopOp)
	defer stop()

	hist, err := s.deps.History.FetchHistory(opCtx, groupID)
	if !s.current(gen) {
		return NewError(ErrorStaleSession, "session ended while loading history")
	}
	if err != nil {
		if !IsFetchError(err) {
			err = WrapError(ErrorFetch, "load group history", err)
		}
		s.fail(gen, err)
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return NewError(ErrorStaleSession, "session ended while loading history")
	}
	g := hist.Group
	s.group = &g
	ch := s.newChannel(gen, groupID, store)
	s.channel = ch
	s.mu.Unlock()

	store.Seed(hist.Messages)

	if err := ch.Open(opCtx); err != nil {
		if !s.current(gen) {
			return NewError(ErrorStaleSession, "session ended while connecting")
		}
		s.fail(gen, err)
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = ch.Close()
		return NewError(ErrorStaleSession, "session ended while connecting")
	}
	ev := s.setStateLocked(SessionLive, nil)
	s.mu.Unlock()

	s.emit(ev)
	s.logger.Info("session live", map[string]any{"group_id": groupID, "history": len(hist.Messages)})
	return nil
}

// Leave removes the user from the group, then tears the session down and
// navigates away. A failed leave request is reported through OnError; the
// local teardown happens regardless, and an errored session ends LeftOrClosed
// too.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	state, groupID := s.state, s.groupID
	s.mu.Unlock()
	if state == SessionIdle || state == SessionLeftOrClosed {
		return NewError(ErrorNotConnected, "no active session")
	}

	if s.deps.Leaver != nil {
		if err := s.deps.Leaver.LeaveGroup(ctx, groupID); err != nil {
			lerr := WrapError(ErrorLeave, "leave group", err)
			s.logger.Warn("leave request failed", map[string]any{"group_id": groupID, "error": err.Error()})
			s.reportError(lerr)
		}
	}

	s.teardown(true)
	if s.deps.Navigator != nil {
		s.deps.Navigator.NavigateAway(groupID)
	}
	s.logger.Info("left group", map[string]any{"group_id": groupID})
	return nil
}

// Close ends the current run without leaving the group. It is idempotent.
// An errored session keeps its state so the cause stays visible.
func (s *Session) Close() error {
	s.teardown(false)
	return nil
}

// Send posts text to the live channel. The message appears in the store
// once the server echoes it.
func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	ch, state := s.channel, s.state
	s.mu.Unlock()
	if state != SessionLive || ch == nil {
		return NewError(ErrorNotConnected, "session not live")
	}
	return ch.Send(ctx, text)
}

// SendImage uploads data in the background. Only argument and state checks
// are returned; upload failures go to OnError.
func (s *Session) SendImage(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return NewError(ErrorInvalidAttachment, "attachment is empty")
	}

	s.mu.Lock()
	state, gen, groupID, runCtx := s.state, s.gen, s.groupID, s.runCtx
	s.mu.Unlock()
	if state != SessionLive {
		return NewError(ErrorNotConnected, "session not live")
	}

	go func() {
		if err := s.uploader.Upload(runCtx, groupID, filename, data); err != nil && s.current(gen) {
			s.reportError(err)
		}
	}()
	return nil
}

func (s *Session) newStore() *MessageStore {
	store := NewMessageStore()
	store.OnSeed(func(msgs []Message) {
		s.hookMu.RLock()
		fn := s.onHistory
		s.hookMu.RUnlock()
		if fn != nil {
			fn(msgs)
		}
	})
	store.OnAppend(func(msg Message) {
		s.hookMu.RLock()
		fn := s.onMessage
		s.hookMu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	})
	return store
}

func (s *Session) newChannel(gen uint64, groupID string, store *MessageStore) *LiveChannel {
	ch := NewLiveChannel(s.cfg, groupID, s.self, s.deps.Dialer)
	ch.SetLogger(s.logger)
	ch.SetMetrics(s.metrics)
	ch.OnText(func(m TextMessage) { s.receive(gen, store, m, "text") })
	ch.OnImage(func(m ImageMessage) { s.receive(gen, store, m, "image") })
	ch.OnError(func(err error) {
		if s.current(gen) {
			s.reportError(err)
		}
	})
	ch.OnStateChanged(func(ev StateEvent) { s.channelChanged(gen, ch, store, ev) })
	return ch
}

func (s *Session) receive(gen uint64, store *MessageStore, ev LiveEvent, kind string) {
	if !s.current(gen) {
		return
	}
	msg := messageFromEvent(ev, s.self, s.now(), s.newID)
	if !store.Append(msg) {
		if !store.Closed() {
			s.metrics.duplicateDropped()
			s.logger.Debug("dropped duplicate message", map[string]any{"id": msg.ID})
		}
		return
	}
	s.metrics.messageReceived(kind)
}

func (s *Session) channelChanged(gen uint64, ch *LiveChannel, store *MessageStore, ev StateEvent) {
	current := s.current(gen)
	if !current && ev.NewState != ChannelClosed {
		return
	}
	s.hookMu.RLock()
	fn := s.onChannel
	s.hookMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
	if !current || ev.NewState != ChannelFailed {
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.state != SessionLive || s.reconnecting {
		s.mu.Unlock()
		return
	}
	if !s.cfg.Reconnect.Enabled {
		s.mu.Unlock()
		s.fail(gen, ev.Error)
		return
	}
	s.reconnecting = true
	runCtx := s.runCtx
	s.mu.Unlock()

	go s.reconnect(runCtx, gen, ch, store, ev.Error)
}

// reconnect reopens a failed channel with backoff, then appends whatever
// was posted while the channel was down. The gap starts at the last message
// stored before the drop; frames read from the new connection must not move it.
func (s *Session) reconnect(ctx context.Context, gen uint64, ch *LiveChannel, store *MessageStore, cause error) {
	cutoff, hasCutoff := store.Last()
	policy := s.cfg.Reconnect
	lastErr := cause
	for attempt := 1; policy.MaxAttempts <= 0 || attempt <= policy.MaxAttempts; attempt++ {
		delay := reconnectDelay(policy, attempt, rand.Float64())
		s.logger.Info("reconnecting", map[string]any{"group_id": ch.GroupID(), "attempt": attempt, "delay": delay.String()})
		if err := sleepContext(ctx, delay); err != nil {
			return
		}
		if !s.current(gen) {
			return
		}

		err := ch.Open(ctx)
		s.metrics.reconnect(err)
		if err == nil {
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
			s.gapFill(ctx, gen, ch.GroupID(), store, cutoff, hasCutoff)
			return
		}
		if errors.Is(err, ErrChannelClosed) || !s.current(gen) {
			return
		}
		lastErr = err
		s.logger.Warn("reconnect attempt failed", map[string]any{"group_id": ch.GroupID(), "attempt": attempt, "error": err.Error()})
	}
	s.fail(gen, WrapError(ErrorChannel, "reconnect attempts exhausted", lastErr))
}

// gapFill re-fetches history and appends rows newer than cutoff. Rows
// matching a live echo already in the store are skipped.
func (s *Session) gapFill(ctx context.Context, gen uint64, groupID string, store *MessageStore, cutoff Message, hasCutoff bool) {
	hist, err := s.deps.History.FetchHistory(ctx, groupID)
	if !s.current(gen) {
		return
	}
	if err != nil {
		s.logger.Warn("gap fill failed", map[string]any{"group_id": groupID, "error": err.Error()})
		s.reportError(err)
		return
	}

	s.mu.Lock()
	g := hist.Group
	s.group = &g
	s.mu.Unlock()

	seen := make(map[echoKey]struct{})
	for _, m := range store.Snapshot() {
		if m.ServerTime {
			seen[echoKeyOf(m)] = struct{}{}
		}
	}
	added := 0
	for _, m := range hist.Messages {
		if hasCutoff && !m.CreatedAt.After(cutoff.CreatedAt) {
			continue
		}
		if _, dup := seen[echoKeyOf(m)]; dup {
			continue
		}
		if store.Append(m) {
			added++
		}
	}
	s.logger.Info("gap fill done", map[string]any{"group_id": groupID, "added": added})
}

type echoKey struct {
	sender string
	body   string
	at     int64
}

func echoKeyOf(m Message) echoKey {
	return echoKey{sender: m.SenderName, body: m.Body, at: m.CreatedAt.UnixMicro()}
}

// fail moves the run gen to Errored and reports err.
func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || s.state == SessionErrored || s.state == SessionLeftOrClosed {
		s.mu.Unlock()
		return
	}
	s.reconnecting = false
	ev := s.setStateLocked(SessionErrored, err)
	s.mu.Unlock()

	fields := map[string]any{"group_id": ev.GroupID}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.logger.Error("session errored", fields)
	s.emit(ev)
}

func (s *Session) teardown(leaving bool) {
	s.mu.Lock()
	ch, events := s.teardownLocked(leaving)
	s.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	s.emit(events...)
}

// teardownLocked ends the current run: bumps the generation, cancels its
// context and closes its store. Loading and Live runs end LeftOrClosed;
// Errored does too when leaving. The channel stays referenced so its final
// state remains readable, and must be closed by the caller outside s.mu.
func (s *Session) teardownLocked(leaving bool) (*LiveChannel, []SessionStateEvent) {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.store.Close()
	ch := s.channel
	s.reconnecting = false

	var events []SessionStateEvent
	if s.state == SessionLoading || s.state == SessionLive || (leaving && s.state == SessionErrored) {
		events = append(events, s.setStateLocked(SessionLeftOrClosed, nil))
	}
	return ch, events
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Session) setStateLocked(next SessionState, err error) SessionStateEvent {
	ev := SessionStateEvent{GroupID: s.groupID, OldState: s.state, NewState: next, Error: err}
	s.state = next
	return ev
}

func (s *Session) emit(events ...SessionStateEvent) {
	if len(events) == 0 {
		return
	}
	s.hookMu.RLock()
	fn := s.onState
	s.hookMu.RUnlock()
	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}

func (s *Session) reportError(err error) {
	s.hookMu.RLock()
	fn := s.onError
	s.hookMu.RUnlock()
	if fn != nil && err != nil {
		fn(err)
	}
}
