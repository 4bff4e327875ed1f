// Package ingest rate-limits incoming peer distance reports before they are
// allowed to update a netstats.NetworkStatistics instance, so a single
// noisy or malicious sender cannot skew the network-wide average or starve
// other senders' reports from ever being folded in.
package ingest

import (
	"log/slog"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/meshkad/routingcore/address"
	"github.com/meshkad/routingcore/netstats"
)

// DistanceReport is a peer's self-reported observation of its own local
// distance, offered up for the network-wide average.
type DistanceReport struct {
	Sender   address.NodeId
	Distance address.NodeId
}

// Config tunes the per-sender token bucket. The defaults mirror the
// teacher lineage's gossip rate limit shape (a MessagesPerSecond/BurstSize
// pair), scaled down for the lower expected volume of distance reports.
type Config struct {
	ReportsPerSecond float64
	BurstSize        int
	BucketTTL        time.Duration
}

// DefaultConfig returns the ingester's default rate-limit budget: 20
// reports per second per sender, with a burst allowance of 40.
func DefaultConfig() Config {
	return Config{
		ReportsPerSecond: 20,
		BurstSize:        40,
		BucketTTL:        time.Minute,
	}
}

// Ingester applies per-sender rate limiting to inbound DistanceReports
// before forwarding accepted ones into a netstats.NetworkStatistics.
type Ingester struct {
	stats   *netstats.NetworkStatistics
	limiter *limiter.TokenBucket
	logger  *slog.Logger
}

// New builds an Ingester that forwards accepted reports into stats.
func New(stats *netstats.NetworkStatistics, cfg Config, logger *slog.Logger) (*Ingester, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bucketStore := store.NewMemoryStore(cfg.BucketTTL)
	tb, err := limiter.NewTokenBucket(limiter.Config{
		Rate:     int64(cfg.ReportsPerSecond),
		Duration: time.Second,
		Burst:    int64(cfg.BurstSize),
	}, bucketStore)
	if err != nil {
		return nil, err
	}

	return &Ingester{
		stats:   stats,
		limiter: tb,
		logger:  logger,
	}, nil
}

// Ingest applies the rate limit keyed by report.Sender's hex id and, if
// allowed, folds the report into the network-wide average distance. It
// reports whether the report was accepted.
func (in *Ingester) Ingest(report DistanceReport) bool {
	key := report.Sender.Hex()
	if !in.limiter.Allow(key) {
		in.logger.Warn("distance report rejected by rate limit", "sender", key)
		return false
	}

	in.stats.UpdateNetworkAverageDistance(report.Distance)
	return true
}
