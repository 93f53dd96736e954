package launch

import (
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"
)

// TokenSource materializes the token for each TokenMode. Random tokens are
// the wall clock in milliseconds, bumped by one when the clock has not moved
// since the previous token, so they never repeat within one process.
type TokenSource struct {
	clock clockwork.Clock

	mu   sync.Mutex
	last int64
}

// NewTokenSource creates a TokenSource. A nil clock uses the real clock.
func NewTokenSource(clock clockwork.Clock) *TokenSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenSource{clock: clock}
}

// Materialize returns the literal token for t. The caller validates
// TokenSpecific values first.
func (s *TokenSource) Materialize(t Token) string {
	switch t.Mode {
	case TokenEmpty:
		return ""
	case TokenSpecific:
		return t.Value
	default:
		return s.next()
	}
}

func (s *TokenSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UnixMilli()
	if now <= s.last {
		now = s.last + 1
	}
	s.last = now
	return strconv.FormatInt(now, 10)
}
