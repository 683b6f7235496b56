// Package sinktest records notifications for assertions.
package sinktest

import (
	"context"
	"sync"

	"service-dispatch/internal/notify"
)

// Sink is a notify.Sink that keeps every message.
type Sink struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

// New returns an empty Sink.
func New() *Sink { return &Sink{} }

// FailWith makes every later Send return err after recording.
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Send implements notify.Sink.
func (s *Sink) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

// Messages returns a copy of the recorded messages.
func (s *Sink) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.msgs...)
}

// Of returns the messages of one type, in send order.
func (s *Sink) Of(ev notify.Event) []notify.Message {
	var out []notify.Message
	for _, m := range s.Messages() {
		if m.Type == ev {
			out = append(out, m)
		}
	}
	return out
}

// Topics returns the topics of the messages of one type.
func (s *Sink) Topics(ev notify.Event) []string {
	var out []string
	for _, m := range s.Of(ev) {
		out = append(out, m.Topic)
	}
	return out
}

var _ notify.Sink = (*Sink)(nil)
