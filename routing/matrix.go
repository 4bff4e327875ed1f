// Package routing implements the MatrixChange diff abstraction: given a
// node's previous and current neighbourhood matrix, it derives which peers
// were lost, the group's proximal radius, and per-target holder deltas
// driving replication decisions on churn.
package routing

import (
	"math/big"
	"sort"

	"github.com/meshkad/routingcore/address"
	"github.com/meshkad/routingcore/config"
)

// MatrixChange is an immutable snapshot diff. It is constructed once per
// neighbourhood transition, queried any number of times, and is safe to
// share across goroutines once built.
type MatrixChange struct {
	self      address.NodeId
	oldSorted []address.NodeId
	newSorted []address.NodeId
	lost      []address.NodeId
	radius    *big.Int
	params    config.Params
}

// NewMatrixChange builds a MatrixChange from the previous (oldMatrix) and
// current (newMatrix) neighbourhood snapshots. Neither slice needs to be
// pre-sorted by the caller, but per the core's contract neither may contain
// self or duplicate entries (they are not removed here): doing so is a
// programming error in the caller.
func NewMatrixChange(self address.NodeId, oldMatrix, newMatrix []address.NodeId, params config.Params) *MatrixChange {
	oldSorted := sortByCloseness(oldMatrix, self)
	newSorted := sortByCloseness(newMatrix, self)

	mc := &MatrixChange{
		self:      self,
		oldSorted: oldSorted,
		newSorted: newSorted,
		lost:      orderedSetDifference(oldSorted, newSorted),
		params:    params,
	}
	mc.radius = mc.computeRadius()
	return mc
}

func (mc *MatrixChange) computeRadius() *big.Int {
	var furthestClose address.NodeId
	if len(mc.newSorted) >= mc.params.ClosestNodesSize {
		furthestClose = mc.newSorted[mc.params.ClosestNodesSize-1]
	} else {
		furthestClose = address.MaxNodeId()
	}
	distance := mc.self.Xor(furthestClose).BigInt()
	return distance.Mul(distance, big.NewInt(int64(mc.params.ProximityFactor)))
}

// Self returns the owning node's id.
func (mc *MatrixChange) Self() address.NodeId { return mc.self }

// OldSorted returns the previous snapshot, sorted closest-to-self-first.
func (mc *MatrixChange) OldSorted() []address.NodeId { return cloneIds(mc.oldSorted) }

// NewSorted returns the current snapshot, sorted closest-to-self-first.
func (mc *MatrixChange) NewSorted() []address.NodeId { return cloneIds(mc.newSorted) }

// Lost returns old_sorted \ new_sorted, preserving self-closeness order.
func (mc *MatrixChange) Lost() []address.NodeId { return cloneIds(mc.lost) }

// Radius returns the group's proximal radius: the XOR distance from self to
// its closest_nodes_size-th closest neighbour in new_sorted, multiplied by
// proximity_factor, falling back to the distance to the maximum NodeId when
// new_sorted is too small.
func (mc *MatrixChange) Radius() *big.Int { return new(big.Int).Set(mc.radius) }

// OldEqualsToNew reports whether the two input snapshots were, as
// multisets, identical: equivalently, whether their canonical
// self-closeness orderings match pointwise.
func (mc *MatrixChange) OldEqualsToNew() bool {
	if len(mc.oldSorted) != len(mc.newSorted) {
		return false
	}
	for i := range mc.oldSorted {
		if mc.oldSorted[i] != mc.newSorted[i] {
			return false
		}
	}
	return true
}

// CheckHolders determines whether self is authoritative for target and, if
// so, which holders must receive replicated data (new_holders) and which
// replicas must be regenerated because their holder was lost (old_holders).
func (mc *MatrixChange) CheckHolders(target address.NodeId) CheckHoldersResult {
	groupSizePlusSelf := mc.params.NodeGroupSize + 1

	oldClose := truncate(sortByCloseness(mc.oldSorted, target), groupSizePlusSelf)
	newClose := truncate(sortByCloseness(mc.newSorted, target), groupSizePlusSelf)
	lostClose := sortByCloseness(mc.lost, target)

	oldClose = removeId(oldClose, target)
	newClose = removeId(newClose, target)
	lostClose = removeId(lostClose, target)

	oldClose = truncate(oldClose, mc.params.NodeGroupSize)
	newClose = truncate(newClose, mc.params.NodeGroupSize)

	status := mc.proximityStatus(target, newClose)

	result := CheckHoldersResult{ProximityStatus: status}
	if status != InRange {
		return result
	}

	result.OldHolders = sortByCloseness(orderedIntersect(oldClose, lostClose), target)
	result.NewHolders = sortByCloseness(orderedSetDifference(newClose, oldClose), target)
	return result
}

func (mc *MatrixChange) proximityStatus(target address.NodeId, newClose []address.NodeId) GroupRangeStatus {
	withSelf := append(cloneIds(newClose), mc.self)
	withSelf = sortByCloseness(withSelf, target)

	for i, id := range withSelf {
		if id == mc.self {
			if i < mc.params.NodeGroupSize {
				return InRange
			}
			break
		}
	}

	distanceToTarget := mc.self.Xor(target).BigInt()
	if distanceToTarget.Cmp(mc.radius) <= 0 {
		return InProximalRange
	}
	return OutwithRange
}

// CheckPmidNodeStatus reports, for each supplied id, whether it newly
// appeared (up) or newly disappeared (down) between old_sorted and
// new_sorted. Order of each output list preserves input order.
func (mc *MatrixChange) CheckPmidNodeStatus(pmidNodes []address.NodeId) PmidNodeStatus {
	oldSet := toSet(mc.oldSorted)
	newSet := toSet(mc.newSorted)

	var status PmidNodeStatus
	for _, id := range pmidNodes {
		_, inOld := oldSet[id]
		_, inNew := newSet[id]
		switch {
		case inNew && !inOld:
			status.NodesUp = append(status.NodesUp, id)
		case inOld && !inNew:
			status.NodesDown = append(status.NodesDown, id)
		}
	}
	return status
}

// --- internal helpers ---

func sortByCloseness(ids []address.NodeId, target address.NodeId) []address.NodeId {
	out := cloneIds(ids)
	sort.Slice(out, func(i, j int) bool {
		return address.CloserToTarget(out[i], out[j], target)
	})
	return out
}

func cloneIds(ids []address.NodeId) []address.NodeId {
	out := make([]address.NodeId, len(ids))
	copy(out, ids)
	return out
}

func truncate(ids []address.NodeId, n int) []address.NodeId {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}

func removeId(ids []address.NodeId, target address.NodeId) []address.NodeId {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func toSet(ids []address.NodeId) map[address.NodeId]struct{} {
	set := make(map[address.NodeId]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// orderedSetDifference returns a \ b, preserving the order already present
// in a (the caller is responsible for having sorted a by whichever
// closeness target matters at the call site).
func orderedSetDifference(a, b []address.NodeId) []address.NodeId {
	bSet := toSet(b)
	out := a[:0:0]
	for _, id := range a {
		if _, found := bSet[id]; !found {
			out = append(out, id)
		}
	}
	return out
}

// orderedIntersect returns a ∩ b, preserving a's relative order.
func orderedIntersect(a, b []address.NodeId) []address.NodeId {
	bSet := toSet(b)
	out := a[:0:0]
	for _, id := range a {
		if _, found := bSet[id]; found {
			out = append(out, id)
		}
	}
	return out
}
