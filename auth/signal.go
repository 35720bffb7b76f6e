package auth

import (
	"fmt"
	"net/http"
	"sync"
)

// Signal broadcasts forced-logout requests. Any part of the portal that
// independently sees an authentication failure raises it; the bootstrapper
// listens and clears the session.
type Signal struct {
	mu   sync.Mutex
	next int
	subs map[int]func(reason string)
}

// NewSignal returns a signal with no subscribers.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]func(string))}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Signal) Subscribe(fn func(reason string)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Raise calls every subscriber with reason, in the caller's goroutine.
func (s *Signal) Raise(reason string) {
	s.mu.Lock()
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(reason)
	}
}

// SignalTransport raises a forced logout whenever a response comes back 401.
// It wraps the transport used for API calls made outside the session layer.
type SignalTransport struct {
	Base   http.RoundTripper
	Signal *Signal
}

var _ http.RoundTripper = (*SignalTransport)(nil)

func (t *SignalTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && t.Signal != nil {
		t.Signal.Raise(fmt.Sprintf("%s %s returned 401", req.Method, req.URL.Path))
	}
	return resp, err
}
