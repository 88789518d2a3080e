package agent

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrScriptExhausted is returned when a ScriptedGenerator has no replies left and no responder
var ErrScriptExhausted = errors.New("scripted generator has no replies left")

// Reply is one scripted generator outcome
type Reply struct {
	Text string
	Err  error
}

// Say scripts a successful reply
func Say(text string) Reply {
	return Reply{Text: text}
}

// Fail scripts a failed call
func Fail(err error) Reply {
	return Reply{Err: err}
}

// ScriptedGenerator replays queued replies in call order and records every request.
// It backs the offline self-test and package tests.
type ScriptedGenerator struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Request

	// Responder answers once the queue is empty. Nil means ErrScriptExhausted.
	Responder func(req Request) (string, error)
}

// NewScriptedGenerator creates a generator that returns replies in order
func NewScriptedGenerator(replies ...Reply) *ScriptedGenerator {
	return &ScriptedGenerator{replies: replies}
}

// Push queues more replies
func (s *ScriptedGenerator) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Generate implements Generator
func (s *ScriptedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)

	if len(s.replies) == 0 {
		responder := s.Responder
		s.mu.Unlock()

		if responder == nil {
			return "", ErrScriptExhausted
		}
		return responder(req)
	}

	next := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()

	return next.Text, next.Err
}

// Calls returns a copy of every request received so far
func (s *ScriptedGenerator) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallsFor returns the requests made by the named agent
func (s *ScriptedGenerator) CallsFor(agentName string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Request
	for _, c := range s.calls {
		if c.Agent == agentName {
			out = append(out, c)
		}
	}
	return out
}

// Remaining reports how many queued replies are left
func (s *ScriptedGenerator) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
