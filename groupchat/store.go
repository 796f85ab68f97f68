package groupchat

import "sync"

// MessageStore is the ordered, deduplicated, append-only view of a session's
// messages. It is seeded once from history and then appended to by the live
// channel. Listeners are called in insertion order, one at a time, and must
// not write to the store.
type MessageStore struct {
	mu       sync.RWMutex
	messages []Message
	ids      map[string]struct{}
	seeded   bool
	closed   bool

	notifyMu sync.Mutex
	onSeed   []func([]Message)
	onAppend []func(Message)

	duplicates int
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{ids: make(map[string]struct{})}
}

// OnSeed registers a listener for the initial population.
func (s *MessageStore) OnSeed(fn func([]Message)) {
	if fn == nil {
		return
	}
	s.notifyMu.Lock()
	s.onSeed = append(s.onSeed, fn)
	s.notifyMu.Unlock()
}

// OnAppend registers a listener for every appended message.
func (s *MessageStore) OnAppend(fn func(Message)) {
	if fn == nil {
		return
	}
	s.notifyMu.Lock()
	s.onAppend = append(s.onAppend, fn)
	s.notifyMu.Unlock()
}

// Seed populates the store once. It is a no-op when the store was already
// seeded, is not empty, or is closed. Duplicate ids within msgs keep the
// first occurrence.
func (s *MessageStore) Seed(msgs []Message) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.seeded || s.closed || len(s.messages) > 0 {
		s.mu.Unlock()
		return false
	}
	s.seeded = true
	for _, m := range msgs {
		if _, dup := s.ids[m.ID]; dup {
			s.duplicates++
			continue
		}
		s.ids[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
	seeded := append([]Message(nil), s.messages...)
	s.mu.Unlock()

	for _, fn := range s.onSeed {
		fn(seeded)
	}
	return true
}

// Append adds msg at the end. It returns false for a duplicate id or a
// closed store.
func (s *MessageStore) Append(msg Message) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if _, dup := s.ids[msg.ID]; dup {
		s.duplicates++
		s.mu.Unlock()
		return false
	}
	s.ids[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	for _, fn := range s.onAppend {
		fn(msg)
	}
	return true
}

// Close makes every later Seed and Append a no-op.
func (s *MessageStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the store was closed.
func (s *MessageStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Snapshot returns a copy of the messages in insertion order.
func (s *MessageStore) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Len returns the number of stored messages.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns the most recently inserted message.
func (s *MessageStore) Last() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Duplicates returns how many inserts were dropped for a repeated id.
func (s *MessageStore) Duplicates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duplicates
}
