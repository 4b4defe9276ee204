package services

import (
	"context"
	"net/http"

	"goa.design/clue/health"

	"grantdesk/internal/metrics"
)

// storePinger is the part of the database-backed store health needs
type storePinger interface {
	Ping(ctx context.Context) error
}

// DatabasePinger reports database reachability to the health checker
type DatabasePinger struct {
	store storePinger
	stats func() (inUse, idle int, err error)
}

// NewDatabasePinger creates a pinger over store. stats, when set, feeds the
// connection pool gauge on every check.
func NewDatabasePinger(store storePinger, stats func() (inUse, idle int, err error)) *DatabasePinger {
	return &DatabasePinger{store: store, stats: stats}
}

// Name implements health.Pinger
func (p *DatabasePinger) Name() string {
	return "database"
}

// Ping implements health.Pinger
func (p *DatabasePinger) Ping(ctx context.Context) error {
	if p.stats != nil {
		if inUse, idle, err := p.stats(); err == nil {
			metrics.UpdateDBConnections(inUse, idle)
		}
	}
	return p.store.Ping(ctx)
}

// HealthHandler serves the aggregated dependency status
func HealthHandler(pingers ...health.Pinger) http.HandlerFunc {
	return health.Handler(health.NewChecker(pingers...))
}
