package inquiry

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/inquiry/pantry/email"
)

// recordingSender records every message and fails the calls listed in failOn
// (1-based call numbers).
type recordingSender struct {
	mu     sync.Mutex
	calls  int
	sent   []email.Message
	failOn map[int]error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failOn: map[int]error{}}
}

func (s *recordingSender) failCall(n int, err error) *recordingSender {
	if err == nil {
		err = errors.New("smtp: 550 mailbox unavailable")
	}
	s.failOn[n] = err
	return s
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.failOn[s.calls]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingSender) Sent() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.sent...)
}
