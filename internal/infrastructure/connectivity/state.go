// Package connectivity decides whether remote sync is possible right now.
// Reachable means the backend is configured, the network path answers a
// ping, and a user has authenticated recently.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// Pinger is the network probe, satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ repository.ConnectivityState = (*State)(nil)

// State combines the three reachability legs. Probe results are cached
// briefly so a burst of sync calls does not hammer the backend.
type State struct {
	configured bool
	pinger     Pinger
	session    *SessionTracker
	timeout    time.Duration
	log        *logger.Logger

	mu        sync.Mutex
	lastProbe time.Time
	lastOK    bool
}

const probeCacheTTL = 5 * time.Second

// New builds the state. pinger may be nil when no backend is configured;
// the instance then reports unreachable forever and runs purely local.
func New(pinger Pinger, session *SessionTracker, probeTimeout time.Duration, log *logger.Logger) *State {
	return &State{
		configured: pinger != nil,
		pinger:     pinger,
		session:    session,
		timeout:    probeTimeout,
		log:        log,
	}
}

// IsReachable reports whether remote sync can proceed right now.
func (s *State) IsReachable(ctx context.Context) bool {
	if !s.configured {
		return false
	}
	if !s.session.Authenticated() {
		return false
	}
	return s.probe(ctx)
}

func (s *State) probe(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastProbe) < probeCacheTTL {
		return s.lastOK
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.pinger.Ping(probeCtx)

	s.lastProbe = time.Now()
	s.lastOK = err == nil
	if err != nil {
		s.log.Debug().Err(err).Msg("connectivity probe failed")
	}
	return s.lastOK
}

// SessionTracker remembers the last successful login. A session goes
// stale after maxIdle without activity; zero maxIdle means sessions
// never expire.
type SessionTracker struct {
	mu        sync.Mutex
	lastLogin time.Time
	maxIdle   time.Duration
}

// NewSessionTracker builds the tracker.
func NewSessionTracker(maxIdle time.Duration) *SessionTracker {
	return &SessionTracker{maxIdle: maxIdle}
}

// MarkLogin records a successful authentication.
func (t *SessionTracker) MarkLogin() {
	t.mu.Lock()
	t.lastLogin = time.Now()
	t.mu.Unlock()
}

// Authenticated reports whether a non-stale session exists.
func (t *SessionTracker) Authenticated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastLogin.IsZero() {
		return false
	}
	if t.maxIdle <= 0 {
		return true
	}
	return time.Since(t.lastLogin) < t.maxIdle
}
