package sync

import (
	"context"
	"time"

	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
	"github.com/handwerkpro/handwerk-api/pkg/logger"
)

// Watcher drives automatic queue flushing: it polls reachability and flushes
// on the offline-to-online transition, plus on a slower periodic interval
// while online so backoff-delayed items get re-attempted.
type Watcher struct {
	engine *Engine
	conn   repository.ConnectivityState
	log    *logger.Logger

	probeInterval time.Duration
	flushInterval time.Duration
}

// NewWatcher builds the watcher. Intervals of zero fall back to 10s probes
// and 60s flushes.
func NewWatcher(engine *Engine, conn repository.ConnectivityState, log *logger.Logger, probeInterval, flushInterval time.Duration) *Watcher {
	if probeInterval <= 0 {
		probeInterval = 10 * time.Second
	}
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	return &Watcher{
		engine:        engine,
		conn:          conn,
		log:           log,
		probeInterval: probeInterval,
		flushInterval: flushInterval,
	}
}

// Run blocks until ctx is done. Meant to be started as a goroutine from main.
func (w *Watcher) Run(ctx context.Context) {
	probe := time.NewTicker(w.probeInterval)
	defer probe.Stop()
	flush := time.NewTicker(w.flushInterval)
	defer flush.Stop()

	online := w.conn.IsReachable(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-probe.C:
			now := w.conn.IsReachable(ctx)
			if now && !online {
				w.log.Info().Msg("remote became reachable, flushing sync queue")
				w.flush(ctx)
			}
			online = now
		case <-flush.C:
			if online {
				w.flush(ctx)
			}
		}
	}
}

func (w *Watcher) flush(ctx context.Context) {
	report, err := w.engine.FlushQueue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("queue flush aborted on local storage error")
		return
	}
	if report.Synced > 0 || report.Failed > 0 || report.Rejected > 0 {
		w.log.Info().
			Int("synced", report.Synced).
			Int("failed", report.Failed).
			Int("rejected", report.Rejected).
			Msg("sync queue flushed")
	}
}
