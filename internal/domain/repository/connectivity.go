package repository

import "context"

// ConnectivityState answers the single question the sync engine asks before
// any remote I/O. Reachable means all of: remote credentials configured,
// network path up, session authenticated. Injecting it keeps online/offline
// deterministic in tests.
type ConnectivityState interface {
	IsReachable(ctx context.Context) bool
}
