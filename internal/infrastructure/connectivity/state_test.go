package connectivity_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/handwerkpro/handwerk-api/internal/infrastructure/connectivity"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

type fakePinger struct {
	err   error
	calls int
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls++
	return p.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "development", Level: "error"})
}

func TestState_UnconfiguredIsNeverReachable(t *testing.T) {
	session := connectivity.NewSessionTracker(0)
	session.MarkLogin()

	state := connectivity.New(nil, session, time.Second, testLogger())
	assert.False(t, state.IsReachable(context.Background()),
		"without backend credentials the instance is permanently offline")
}

func TestState_RequiresAuthenticatedSession(t *testing.T) {
	pinger := &fakePinger{}
	session := connectivity.NewSessionTracker(0)
	state := connectivity.New(pinger, session, time.Second, testLogger())

	assert.False(t, state.IsReachable(context.Background()),
		"no login yet, so not reachable")
	assert.Zero(t, pinger.calls, "the network is not even probed without a session")

	session.MarkLogin()
	assert.True(t, state.IsReachable(context.Background()))
}

func TestState_ProbeFailureMeansOffline(t *testing.T) {
	pinger := &fakePinger{err: fmt.Errorf("dial tcp: no route to host")}
	session := connectivity.NewSessionTracker(0)
	session.MarkLogin()

	state := connectivity.New(pinger, session, time.Second, testLogger())
	assert.False(t, state.IsReachable(context.Background()))
}

func TestState_ProbeResultIsCachedBriefly(t *testing.T) {
	pinger := &fakePinger{}
	session := connectivity.NewSessionTracker(0)
	session.MarkLogin()

	state := connectivity.New(pinger, session, time.Second, testLogger())
	for i := 0; i < 5; i++ {
		assert.True(t, state.IsReachable(context.Background()))
	}
	assert.Equal(t, 1, pinger.calls,
		"a burst of reachability checks reuses the cached probe result")
}

func TestSessionTracker_ExpiresAfterMaxIdle(t *testing.T) {
	session := connectivity.NewSessionTracker(time.Millisecond)
	session.MarkLogin()
	assert.True(t, session.Authenticated())

	time.Sleep(5 * time.Millisecond)
	assert.False(t, session.Authenticated(), "an idle session goes stale")

	session.MarkLogin()
	assert.True(t, session.Authenticated(), "a fresh login revives the session")
}

func TestSessionTracker_ZeroMaxIdleNeverExpires(t *testing.T) {
	session := connectivity.NewSessionTracker(0)
	assert.False(t, session.Authenticated(), "no login yet")
	session.MarkLogin()
	assert.True(t, session.Authenticated())
}
