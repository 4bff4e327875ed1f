// Package replication turns the holder deltas produced by
// routing.MatrixChange.CheckHolders into a deduplicated dispatch plan,
// circuit-breaking per destination so one wedged peer cannot stall
// replication of every other key. It is a thin library-level collaborator
// around the routing core, not part of the core itself: it only calls the
// core's already-computed CheckHoldersResult and an injected Replicator,
// the same way the teacher lineage's gossip manager sits alongside its DHT
// rather than inside it.
package replication

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sony/gobreaker"

	"github.com/meshkad/routingcore/address"
	"github.com/meshkad/routingcore/routing"
)

// TaskKind distinguishes pushing data to a newly responsible holder from
// regenerating a replica whose holder was lost.
type TaskKind int

const (
	Push TaskKind = iota
	Regenerate
)

func (k TaskKind) String() string {
	if k == Push {
		return "push"
	}
	return "regenerate"
}

// ReplicationTask is one unit of dispatch work.
type ReplicationTask struct {
	Target address.NodeId
	Holder address.NodeId
	Kind   TaskKind
}

// ReplicationPlan is the deduplicated set of tasks a churn event produced.
type ReplicationPlan struct {
	Tasks []ReplicationTask
}

// Replicator is the external collaborator that actually moves data. The
// planner never performs I/O itself.
type Replicator interface {
	Push(ctx context.Context, holder address.NodeId, target address.NodeId) error
	Regenerate(ctx context.Context, lostHolder address.NodeId, target address.NodeId) error
}

// Option configures a Planner at construction time.
type Option func(*Planner)

// WithLogger overrides the planner's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) { p.logger = logger }
}

// WithSeenFilter overrides the default dedupe Bloom filter sizing.
func WithSeenFilter(expectedElements uint, falsePositiveRate float64) Option {
	return func(p *Planner) { p.seen = bloom.NewWithEstimates(expectedElements, falsePositiveRate) }
}

// WithBreakerTimeout overrides how long a tripped destination breaker stays
// open before allowing a probe request through.
func WithBreakerTimeout(d time.Duration) Option {
	return func(p *Planner) { p.breakerTimeout = d }
}

// Planner deduplicates and dispatches replication work.
type Planner struct {
	mu         sync.Mutex
	replicator Replicator
	seen       *bloom.BloomFilter
	logger     *slog.Logger

	breakersMu     sync.Mutex
	breakers       map[address.NodeId]*gobreaker.CircuitBreaker
	breakerTimeout time.Duration
}

// NewPlanner builds a Planner dispatching through replicator.
func NewPlanner(replicator Replicator, opts ...Option) *Planner {
	p := &Planner{
		replicator:     replicator,
		seen:           bloom.NewWithEstimates(100_000, 0.01),
		logger:         slog.Default(),
		breakers:       make(map[address.NodeId]*gobreaker.CircuitBreaker),
		breakerTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan consumes a CheckHoldersResult for target and produces the tasks that
// have not already been dispatched for this (kind, target, holder) triple.
// Calling Plan twice in a row with an unchanged result yields an empty plan
// the second time.
func (p *Planner) Plan(target address.NodeId, result routing.CheckHoldersResult) ReplicationPlan {
	p.mu.Lock()
	defer p.mu.Unlock()

	var plan ReplicationPlan
	for _, holder := range result.NewHolders {
		if p.markSeen(Push, target, holder) {
			plan.Tasks = append(plan.Tasks, ReplicationTask{Target: target, Holder: holder, Kind: Push})
		}
	}
	for _, lostHolder := range result.OldHolders {
		if p.markSeen(Regenerate, target, lostHolder) {
			plan.Tasks = append(plan.Tasks, ReplicationTask{Target: target, Holder: lostHolder, Kind: Regenerate})
		}
	}
	return plan
}

// markSeen reports whether (kind, target, holder) is new, recording it as
// seen either way.
func (p *Planner) markSeen(kind TaskKind, target, holder address.NodeId) bool {
	key := seenKey(kind, target, holder)
	if p.seen.Test(key) {
		return false
	}
	p.seen.Add(key)
	return true
}

func seenKey(kind TaskKind, target, holder address.NodeId) []byte {
	key := make([]byte, 0, address.Size*2+1)
	key = append(key, byte(kind))
	key = append(key, target.Bytes()...)
	key = append(key, holder.Bytes()...)
	return key
}

// Dispatch executes plan through the injected Replicator, one circuit
// breaker per destination holder. A tripped breaker for one holder never
// blocks dispatch to the others; all per-task errors are joined in the
// returned error.
func (p *Planner) Dispatch(ctx context.Context, plan ReplicationPlan) error {
	var errs []error
	for _, task := range plan.Tasks {
		breaker := p.breakerFor(task.Holder)
		_, err := breaker.Execute(func() (interface{}, error) {
			switch task.Kind {
			case Push:
				return nil, p.replicator.Push(ctx, task.Holder, task.Target)
			default:
				return nil, p.replicator.Regenerate(ctx, task.Holder, task.Target)
			}
		})
		if err != nil {
			p.logger.Warn("replication task failed",
				"kind", task.Kind.String(),
				"holder", task.Holder.Hex(),
				"target", task.Target.Hex(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Planner) breakerFor(holder address.NodeId) *gobreaker.CircuitBreaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()

	if cb, ok := p.breakers[holder]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    holder.Hex(),
		Timeout: p.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	p.breakers[holder] = cb
	return cb
}
