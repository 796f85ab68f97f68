package groupchat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/eduflow/eduflow-chat-sdk-go/mocks"
)

type historyFunc func(ctx context.Context, groupID string) (*History, error)

func (f historyFunc) FetchHistory(ctx context.Context, groupID string) (*History, error) {
	return f(ctx, groupID)
}

func scenarioAHistory() *History {
	return &History{
		Group: Group{ID: "g1", Name: "Algebra", MemberCount: 3},
		Messages: []Message{{
			ID:         "1",
			SenderName: "bob",
			Body:       "hi",
			CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Source:     SourceHistory,
			ServerTime: true,
		}},
		MemberCount: 3,
	}
}

func staticHistory(h *History) historyFunc {
	return func(context.Context, string) (*History, error) { return h, nil }
}

type sessionRecorder struct {
	mu     sync.Mutex
	events []SessionStateEvent
	errs   []error
}

func (r *sessionRecorder) attach(s *Session) {
	s.OnStateChanged(func(ev SessionStateEvent) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	s.OnError(func(err error) {
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	})
}

func (r *sessionRecorder) states() []SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionState, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.NewState)
	}
	return out
}

func (r *sessionRecorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func newTestSession(self Identity, deps Deps) *Session {
	s := NewSession(testConfig(nil), self, deps)
	n := 0
	s.newID = func() string {
		n++
		return "live-" + string(rune('0'+n))
	}
	return s
}

func waitLen(t *testing.T, s *Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Store().Len() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestSessionScenarioAAndB(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{ID: "5", Username: "alice"}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	var rec sessionRecorder
	rec.attach(s)
	defer s.Close()

	req.NoError(s.Start(context.Background(), "g1"))
	req.Equal(SessionLive, s.State())
	req.Equal(ChannelOpen, s.ChannelState())
	req.Equal([]SessionState{SessionLoading, SessionLive}, rec.states())

	g, ok := s.Group()
	req.True(ok)
	req.Equal("Algebra", g.Name)
	req.Equal(3, g.MemberCount)

	seeded := s.Messages()
	req.Len(seeded, 1)
	req.False(seeded[0].IsOwn)

	d.last().deliver(`{"message":"hello","username":"alice"}`)
	waitLen(t, s, 2)

	msgs := s.Messages()
	req.Equal("1", msgs[0].ID)
	req.Equal("hello", msgs[1].Body)
	req.Equal("live-1", msgs[1].ID)
	req.True(msgs[1].IsOwn)
	req.Equal(SourceLive, msgs[1].Source)
	req.False(msgs[1].ServerTime)
}

func TestSessionPreservesDeliveryOrder(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{Username: "alice"}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	defer s.Close()
	var notified []string
	var mu sync.Mutex
	s.OnMessage(func(m Message) {
		mu.Lock()
		notified = append(notified, m.Body)
		mu.Unlock()
	})

	req.NoError(s.Start(context.Background(), "g1"))
	bodies := []string{"a", "b", "c", "d", "e", "f"}
	for i, b := range bodies {
		from := "bob"
		if i%2 == 0 {
			from = "alice"
		}
		d.last().deliver(`{"message":"` + b + `","username":"` + from + `"}`)
	}
	waitLen(t, s, 1+len(bodies))

	got := make([]string, 0, len(bodies))
	for i, m := range s.Messages()[1:] {
		got = append(got, m.Body)
		req.Equal(i%2 == 0, m.IsOwn, "message %s", m.Body)
	}
	req.Equal(bodies, got)
	mu.Lock()
	req.Equal(bodies, notified)
	mu.Unlock()
}

func TestSessionOpensChannelOnlyAfterHistory(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	gate := make(chan struct{})
	fetching := make(chan struct{})
	history := historyFunc(func(ctx context.Context, groupID string) (*History, error) {
		close(fetching)
		<-gate
		return scenarioAHistory(), nil
	})
	s := newTestSession(Identity{}, Deps{History: history, Dialer: d})
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background(), "g1") }()
	<-fetching

	for i := 0; i < 10; i++ {
		req.Zero(d.dialCount())
		req.Equal(SessionLoading, s.State())
		req.Equal(ChannelIdle, s.ChannelState())
		time.Sleep(5 * time.Millisecond)
	}

	close(gate)
	req.NoError(<-done)
	req.Equal(1, d.dialCount())
	req.Equal(SessionLive, s.State())
}

func TestSessionHistoryFailure(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	cause := errors.New("404 not found")
	history := historyFunc(func(context.Context, string) (*History, error) { return nil, cause })
	s := newTestSession(Identity{}, Deps{History: history, Dialer: d})
	var rec sessionRecorder
	rec.attach(s)

	err := s.Start(context.Background(), "missing")
	req.True(IsFetchError(err))
	req.ErrorIs(err, cause)
	req.Equal(SessionErrored, s.State())
	req.Zero(d.dialCount())
	req.Equal([]SessionState{SessionLoading, SessionErrored}, rec.states())
	req.NoError(s.Close())
	req.Equal(SessionErrored, s.State())
}

func TestSessionChannelOpenFailure(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{errs: []error{errors.New("handshake rejected")}}
	s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	defer s.Close()

	err := s.Start(context.Background(), "g1")
	req.True(IsChannelError(err))
	req.Equal(SessionErrored, s.State())
	req.Equal(ChannelFailed, s.ChannelState())
	req.Equal(1, s.Store().Len())
}

func TestSessionScenarioCUnmountDuringLoad(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	gate := make(chan struct{})
	fetching := make(chan struct{})
	history := historyFunc(func(ctx context.Context, groupID string) (*History, error) {
		close(fetching)
		<-gate
		return scenarioAHistory(), nil
	})
	s := newTestSession(Identity{}, Deps{History: history, Dialer: d})
	var rec sessionRecorder
	rec.attach(s)
	var seeds int
	var mu sync.Mutex
	s.OnHistory(func([]Message) {
		mu.Lock()
		seeds++
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background(), "g1") }()
	<-fetching
	store := s.Store()

	req.NoError(s.Close())
	req.Equal(SessionLeftOrClosed, s.State())
	close(gate)

	err := <-done
	req.ErrorIs(err, ErrStaleSession)
	req.Zero(d.dialCount())
	req.True(store.Closed())
	req.Zero(store.Len())
	mu.Lock()
	req.Zero(seeds)
	mu.Unlock()
	req.Equal([]SessionState{SessionLoading, SessionLeftOrClosed}, rec.states())
	req.Equal(SessionLeftOrClosed, s.State())
}

func TestSessionCloseCancelsFetch(t *testing.T) {
	req := require.New(t)
	fetching := make(chan struct{})
	history := historyFunc(func(ctx context.Context, groupID string) (*History, error) {
		close(fetching)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := newTestSession(Identity{}, Deps{History: history, Dialer: &fakeDialer{}})

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background(), "g1") }()
	<-fetching
	req.NoError(s.Close())

	select {
	case err := <-done:
		req.ErrorIs(err, ErrStaleSession)
	case <-time.After(2 * time.Second):
		req.Fail("fetch was not cancelled")
	}
}

func TestSessionScenarioDLeave(t *testing.T) {
	for _, leaveErr := range []error{nil, errors.New("500 internal server error")} {
		name := "leave succeeds"
		if leaveErr != nil {
			name = "leave fails"
		}
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			d := &fakeDialer{}
			leaver := mocks.NewMockGroupLeaver(ctrl)
			nav := mocks.NewMockNavigator(ctrl)
			gomock.InOrder(
				leaver.EXPECT().LeaveGroup(gomock.Any(), "g1").Return(leaveErr),
				nav.EXPECT().NavigateAway("g1"),
			)

			s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d, Leaver: leaver, Navigator: nav})
			var rec sessionRecorder
			rec.attach(s)
			req.NoError(s.Start(context.Background(), "g1"))
			store := s.Store()

			req.NoError(s.Leave(context.Background()))
			req.Equal(SessionLeftOrClosed, s.State())
			req.Equal(ChannelClosed, s.ChannelState())
			req.True(d.last().isClosed())
			req.True(store.Closed())

			errs := rec.errors()
			if leaveErr == nil {
				req.Empty(errs)
			} else {
				req.Len(errs, 1)
				req.ErrorIs(errs[0], ErrLeave)
				req.ErrorIs(errs[0], leaveErr)
			}
			req.ErrorIs(s.Leave(context.Background()), ErrNotConnected)
		})
	}
}

func TestSessionLeaveFromErrored(t *testing.T) {
	tests := []struct {
		name    string
		history historyFunc
		drop    bool
		states  []SessionState
	}{
		{
			name: "history failed",
			history: func(context.Context, string) (*History, error) {
				return nil, errors.New("502 bad gateway")
			},
			states: []SessionState{SessionLoading, SessionErrored, SessionLeftOrClosed},
		},
		{
			name:    "channel dropped",
			history: staticHistory(scenarioAHistory()),
			drop:    true,
			states:  []SessionState{SessionLoading, SessionLive, SessionErrored, SessionLeftOrClosed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			leaver := mocks.NewMockGroupLeaver(ctrl)
			nav := mocks.NewMockNavigator(ctrl)
			gomock.InOrder(
				leaver.EXPECT().LeaveGroup(gomock.Any(), "g1").Return(nil),
				nav.EXPECT().NavigateAway("g1"),
			)

			d := &fakeDialer{}
			s := newTestSession(Identity{}, Deps{History: tt.history, Dialer: d, Leaver: leaver, Navigator: nav})
			var rec sessionRecorder
			rec.attach(s)

			err := s.Start(context.Background(), "g1")
			if tt.drop {
				req.NoError(err)
				d.last().drop()
			}
			req.Eventually(func() bool { return lo.Contains(rec.states(), SessionErrored) }, 2*time.Second, 5*time.Millisecond)
			store := s.Store()

			req.NoError(s.Leave(context.Background()))
			req.Equal(SessionLeftOrClosed, s.State())
			req.Equal(ChannelClosed, s.ChannelState())
			req.True(store.Closed())
			if conn := d.last(); conn != nil {
				req.True(conn.isClosed())
			}
			req.Equal(tt.states, rec.states())
			req.ErrorIs(s.Leave(context.Background()), ErrNotConnected)
		})
	}
}

func TestSessionCloseFromErroredKeepsState(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	var rec sessionRecorder
	rec.attach(s)

	req.NoError(s.Start(context.Background(), "g1"))
	d.last().drop()
	req.Eventually(func() bool { return lo.Contains(rec.states(), SessionErrored) }, 2*time.Second, 5*time.Millisecond)
	store := s.Store()

	req.NoError(s.Close())
	req.NoError(s.Close())
	req.Equal(SessionErrored, s.State())
	req.Equal(ChannelClosed, s.ChannelState())
	req.True(store.Closed())
	req.Equal([]SessionState{SessionLoading, SessionLive, SessionErrored}, rec.states())
	req.ErrorIs(s.Send(context.Background(), "late"), ErrNotConnected)
}

func TestSessionIsOwnAcrossSources(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	self := Identity{ID: "7", Username: "bob"}
	hist := scenarioAHistory()
	hist.Messages[0].IsOwn = self.Owns("7", "bob")
	s := newTestSession(self, Deps{History: staticHistory(hist), Dialer: d})
	defer s.Close()

	req.NoError(s.Start(context.Background(), "g1"))
	d.last().deliver(`{"message":"mine","username":"bob"}`)
	d.last().deliver(`{"message":"theirs","username":"bobby"}`)
	waitLen(t, s, 3)

	msgs := s.Messages()
	req.True(msgs[0].IsOwn)
	req.True(msgs[1].IsOwn)
	req.False(msgs[2].IsOwn)
}

func TestSessionDropsDuplicateIDs(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	defer s.Close()

	req.NoError(s.Start(context.Background(), "g1"))
	d.last().deliver(`{"id":1,"message":"hi again","username":"bob"}`)
	d.last().deliver(`{"id":2,"message":"new","username":"bob"}`)
	waitLen(t, s, 2)
	req.Eventually(func() bool { return s.Store().Duplicates() == 1 }, time.Second, 5*time.Millisecond)
	req.Equal("hi", s.Messages()[0].Body)
}

func TestSessionSendRequiresLive(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{Username: "alice"}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})

	req.ErrorIs(s.Send(context.Background(), "hi"), ErrNotConnected)
	req.NoError(s.Start(context.Background(), "g1"))
	req.NoError(s.Send(context.Background(), "hi"))
	req.Eventually(func() bool { return len(d.last().writes()) == 1 }, time.Second, 5*time.Millisecond)
	req.Zero(len(s.Messages()) - 1)

	req.NoError(s.Close())
	req.NoError(s.Close())
	req.ErrorIs(s.Send(context.Background(), "late"), ErrNotConnected)
}

func TestSessionSendImageReportsFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockImageSender(ctrl)
	sender.EXPECT().SendImage(gomock.Any(), "g1", "cat.png", "image/png", gomock.Any()).Return(errors.New("413"))

	s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: &fakeDialer{}, Images: sender})
	defer s.Close()
	var rec sessionRecorder
	rec.attach(s)

	req.ErrorIs(s.SendImage(context.Background(), "cat.png", pngHeader), ErrNotConnected)
	req.NoError(s.Start(context.Background(), "g1"))
	req.True(hasCode(s.SendImage(context.Background(), "cat.png", nil), ErrorInvalidAttachment))
	req.NoError(s.SendImage(context.Background(), "cat.png", pngHeader))

	req.Eventually(func() bool { return len(rec.errors()) == 1 }, 2*time.Second, 5*time.Millisecond)
	req.ErrorIs(rec.errors()[0], ErrUpload)
	req.Equal(SessionLive, s.State())
	req.Equal(1, s.Store().Len())
}

func TestSessionDropWithoutReconnect(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	defer s.Close()
	var rec sessionRecorder
	rec.attach(s)

	req.NoError(s.Start(context.Background(), "g1"))
	d.last().drop()

	req.Eventually(func() bool { return s.State() == SessionErrored }, 2*time.Second, 5*time.Millisecond)
	req.Equal(ChannelFailed, s.ChannelState())
	req.Equal(1, d.dialCount())
	req.Eventually(func() bool { return len(rec.errors()) == 1 }, time.Second, 5*time.Millisecond)
	req.True(IsChannelError(rec.errors()[0]))
}

func TestSessionReconnectsAndFillsGap(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{errs: []error{nil, errors.New("still down")}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var calls int
	var mu sync.Mutex
	history := historyFunc(func(context.Context, string) (*History, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		h := scenarioAHistory()
		if calls > 1 {
			h.Messages = append(h.Messages,
				Message{ID: "2", SenderName: "bob", Body: "echoed live", CreatedAt: base.Add(time.Minute), ServerTime: true},
				Message{ID: "3", SenderName: "carol", Body: "missed", CreatedAt: base.Add(2 * time.Minute), ServerTime: true},
			)
		}
		return h, nil
	})

	cfg := testConfig(nil)
	cfg.Reconnect = ReconnectConfig{Enabled: true, MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Factor: 2}
	s := NewSession(cfg, Identity{Username: "alice"}, Deps{History: history, Dialer: d})
	defer s.Close()
	var rec sessionRecorder
	rec.attach(s)

	req.NoError(s.Start(context.Background(), "g1"))
	d.last().deliver(`{"message":"echoed live","username":"bob","timestamp":"2024-01-01T00:01:00Z"}`)
	waitLen(t, s, 2)

	d.conn(0).drop()
	req.Eventually(func() bool { return s.Store().Len() == 3 }, 2*time.Second, 5*time.Millisecond)

	msgs := s.Messages()
	req.Equal("echoed live", msgs[1].Body)
	req.Equal("missed", msgs[2].Body)
	req.Equal("3", msgs[2].ID)
	req.Equal(SessionLive, s.State())
	req.Equal(ChannelOpen, s.ChannelState())
	req.Equal(3, d.dialCount())
	req.NotContains(rec.states(), SessionErrored)
}

func TestSessionGapFillKeepsRowsMissedBeforeLiveFrame(t *testing.T) {
	req := require.New(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &fakeDialer{onDial: func(n int, conn *fakeConn) {
		if n == 2 {
			conn.deliver(`{"message":"after reconnect","username":"carol","timestamp":"2024-01-01T00:03:00Z"}`)
		}
	}}

	var calls int
	var mu sync.Mutex
	history := historyFunc(func(context.Context, string) (*History, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		h := scenarioAHistory()
		if calls > 1 {
			h.Messages = append(h.Messages,
				Message{ID: "3", SenderName: "dave", Body: "missed while down", CreatedAt: base.Add(2 * time.Minute), ServerTime: true},
				Message{ID: "4", SenderName: "carol", Body: "after reconnect", CreatedAt: base.Add(3 * time.Minute), ServerTime: true},
			)
		}
		return h, nil
	})

	cfg := testConfig(nil)
	cfg.Reconnect = ReconnectConfig{Enabled: true, MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Factor: 2}
	s := NewSession(cfg, Identity{Username: "alice"}, Deps{History: history, Dialer: d})
	defer s.Close()

	// Hold the reconnect until the fresh connection's frame is stored, so the
	// gap fill runs with a live message newer than every missed row.
	arrived := make(chan struct{})
	var once sync.Once
	s.OnMessage(func(m Message) {
		if m.Body == "after reconnect" {
			once.Do(func() { close(arrived) })
		}
	})
	s.OnChannelState(func(ev StateEvent) {
		if ev.NewState == ChannelOpen && d.dialCount() == 2 {
			select {
			case <-arrived:
			case <-time.After(2 * time.Second):
			}
		}
	})

	req.NoError(s.Start(context.Background(), "g1"))
	d.conn(0).drop()

	req.Eventually(func() bool { return s.Store().Len() == 3 }, 2*time.Second, 5*time.Millisecond)
	bodies := lo.Map(s.Messages(), func(m Message, _ int) string { return m.Body })
	req.Equal([]string{"hi", "after reconnect", "missed while down"}, bodies)
	req.Equal(SessionLive, s.State())
	req.Equal(2, d.dialCount())
}

func TestSessionReconnectExhausted(t *testing.T) {
	req := require.New(t)
	down := errors.New("connection refused")
	d := &fakeDialer{errs: []error{nil, down, down}}

	cfg := testConfig(nil)
	cfg.Reconnect = ReconnectConfig{Enabled: true, MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1}
	s := NewSession(cfg, Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	defer s.Close()

	req.NoError(s.Start(context.Background(), "g1"))
	d.last().drop()

	req.Eventually(func() bool { return s.State() == SessionErrored }, 2*time.Second, 5*time.Millisecond)
	req.Equal(3, d.dialCount())
}

func TestSessionRestartTearsDownPreviousRun(t *testing.T) {
	req := require.New(t)
	d := &fakeDialer{}
	s := newTestSession(Identity{}, Deps{History: staticHistory(scenarioAHistory()), Dialer: d})
	defer s.Close()
	var rec sessionRecorder
	rec.attach(s)

	req.NoError(s.Start(context.Background(), "g1"))
	first, firstStore := d.last(), s.Store()
	req.NoError(s.Start(context.Background(), "g2"))

	req.True(first.isClosed())
	req.True(firstStore.Closed())
	req.Equal("g2", s.GroupID())
	req.Equal([]SessionState{SessionLoading, SessionLive, SessionLeftOrClosed, SessionIdle, SessionLoading, SessionLive}, rec.states())

	first.deliver(`{"message":"stale","username":"bob"}`)
	time.Sleep(20 * time.Millisecond)
	req.Equal(1, s.Store().Len())
}
