// Package netstats aggregates local and network-wide neighbour-distance
// statistics under a single lock, answering "is this identifier within my
// group's range" queries for higher layers without requiring the full
// routing matrix.
package netstats

import (
	"math/big"
	"sort"
	"sync"

	"github.com/meshkad/routingcore/address"
	"github.com/meshkad/routingcore/config"
)

var twoPow512 = new(big.Int).Lsh(big.NewInt(1), 512)

const maxUint64 = ^uint64(0)

// NetworkStatistics is a thread-safe, process-long-lived aggregator of
// neighbour-distance observations. Every read and write happens under a
// single internal lock; no reference to mutable state escapes it.
type NetworkStatistics struct {
	mu sync.Mutex

	self   address.NodeId
	params config.Params

	localDistance    address.NodeId
	haveLocalSample  bool
	contributors     *big.Int
	totalDistance    *big.Int
	averageDistance  address.NodeId
	maxHopsTraversed uint16
}

// New creates a NetworkStatistics instance for the owning node, using
// params to decide how many neighbours constitute "enough" for a local
// distance sample.
func New(self address.NodeId, params config.Params) *NetworkStatistics {
	return &NetworkStatistics{
		self:          self,
		params:        params,
		contributors:  big.NewInt(0),
		totalDistance: big.NewInt(0),
	}
}

// UpdateLocalAverageDistance recomputes local_distance from the current
// unique neighbour set. If fewer than params.ClosestNodesSize neighbours
// are known, local_distance is left unchanged: a degenerate topology is
// not an error, just insufficient data.
func (ns *NetworkStatistics) UpdateLocalAverageDistance(uniqueNodes []address.NodeId) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if len(uniqueNodes) < ns.params.ClosestNodesSize {
		return
	}

	sorted := make([]address.NodeId, len(uniqueNodes))
	copy(sorted, uniqueNodes)
	sort.Slice(sorted, func(i, j int) bool {
		return address.CloserToTarget(sorted[i], sorted[j], ns.self)
	})

	furthestClose := sorted[ns.params.ClosestNodesSize-1]
	ns.localDistance = ns.self.Xor(furthestClose)
	ns.haveLocalSample = true
}

// UpdateNetworkAverageDistance folds a peer-reported distance into the
// running network-wide average.
func (ns *NetworkStatistics) UpdateNetworkAverageDistance(distance address.NodeId) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.contributors.Add(ns.contributors, big.NewInt(1))
	ns.totalDistance.Add(ns.totalDistance, distance.BigInt())

	avg := new(big.Int).Quo(ns.totalDistance, ns.contributors)
	ns.averageDistance = address.NodeIdFromBigInt(avg)
}

// EstimateInGroup reports whether info_id lies within sender_id's observed
// group range, as seen from self's local_distance sample. Returns false
// until enough neighbours have been observed to set local_distance.
func (ns *NetworkStatistics) EstimateInGroup(senderID, infoID address.NodeId) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if !ns.haveLocalSample {
		return false
	}
	return senderID.Xor(infoID).Less(ns.localDistance)
}

// GetDistance returns the current local_distance.
func (ns *NetworkStatistics) GetDistance() address.NodeId {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.localDistance
}

// NetworkAverageDistance returns the current network-wide running average
// distance and the number of reports folded into it so far.
func (ns *NetworkStatistics) NetworkAverageDistance() (average address.NodeId, contributors int64) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.averageDistance, ns.contributors.Int64()
}

// NetworkPopulation estimates total network size from the current local
// distance sample: population ~= 2^512 / max(local_distance, 1), saturating
// at the maximum uint64 value.
func (ns *NetworkStatistics) NetworkPopulation() uint64 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return estimatePopulation(ns.localDistance)
}

// NetworkPopulationForNode is the preserved-for-compatibility overload of
// NetworkPopulation that historically accepted a node id. The argument is
// ignored; see DESIGN.md for why this is intentional rather than a bug.
func (ns *NetworkStatistics) NetworkPopulationForNode(_ address.NodeId) uint64 {
	return ns.NetworkPopulation()
}

func estimatePopulation(localDistance address.NodeId) uint64 {
	d := localDistance.BigInt()
	if d.Sign() == 0 {
		d = big.NewInt(1)
	}
	population := new(big.Int).Quo(twoPow512, d)
	if !population.IsUint64() {
		return maxUint64
	}
	return population.Uint64()
}

// SetMaximumHopsTraversed raises max_hops_traversed if hops exceeds the
// current value; the field never decreases.
func (ns *NetworkStatistics) SetMaximumHopsTraversed(hops uint16) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if hops > ns.maxHopsTraversed {
		ns.maxHopsTraversed = hops
	}
}

// MaxHopsTraversed returns the current monotone hop-count ceiling.
func (ns *NetworkStatistics) MaxHopsTraversed() uint16 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.maxHopsTraversed
}
