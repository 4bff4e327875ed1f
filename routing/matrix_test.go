package routing

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/meshkad/routingcore/address"
	"github.com/meshkad/routingcore/config"
	"github.com/stretchr/testify/assert"
)

func idN(n int64) address.NodeId {
	return address.NodeIdFromBigInt(big.NewInt(n))
}

func idsN(ns ...int64) []address.NodeId {
	out := make([]address.NodeId, len(ns))
	for i, n := range ns {
		out[i] = idN(n)
	}
	return out
}

func testParams() config.Params {
	return config.Params{ClosestNodesSize: 8, NodeGroupSize: 4, ProximityFactor: 2}
}

// Pure growth: no lost holders.
func TestCheckHolders_PureGrowth(t *testing.T) {
	self := idN(0)
	oldMatrix := idsN(1, 2, 3, 4, 5)
	newMatrix := idsN(1, 2, 3, 4, 5, 6, 7)
	target := idN(0x10)

	mc := NewMatrixChange(self, oldMatrix, newMatrix, config.Params{ClosestNodesSize: 8, NodeGroupSize: 4, ProximityFactor: 2})

	assert.Empty(t, mc.Lost())

	result := mc.CheckHolders(target)
	assert.Equal(t, InRange, result.ProximityStatus)
	assert.Empty(t, result.OldHolders)
	// 6 and 7 are further from target than 1..4, so no addition enters
	// the 4 closest and there are no new holders either.
	assert.Empty(t, result.NewHolders)

	for _, h := range result.NewHolders {
		for _, o := range oldMatrix {
			assert.NotEqual(t, h, o, "new holder must not already have been an old-matrix member in this scenario")
		}
	}
}

// Churn replacing one holder.
func TestCheckHolders_ChurnReplacesHolder(t *testing.T) {
	self := idN(0)
	// D is furthest from target so that E is among the 4 old holders and
	// F, its replacement, is among the 4 new ones.
	A, B, C, D, E, F := idN(1), idN(2), idN(3), idN(20), idN(5), idN(6)
	oldMatrix := []address.NodeId{A, B, C, D, E}
	newMatrix := []address.NodeId{A, B, C, D, F}
	target := idN(0)

	mc := NewMatrixChange(self, oldMatrix, newMatrix, testParams())

	lost := mc.Lost()
	if assert.Len(t, lost, 1) {
		assert.Equal(t, E, lost[0])
	}

	result := mc.CheckHolders(target)
	assert.Equal(t, InRange, result.ProximityStatus)
	assert.Contains(t, result.OldHolders, E)
	assert.Contains(t, result.NewHolders, F)
}

// Target equals a matrix member; it must never appear in either
// holder list.
func TestCheckHolders_TargetIsMatrixMember(t *testing.T) {
	self := idN(0)
	target := idN(3)
	oldMatrix := idsN(1, 2, 3, 4, 5)
	newMatrix := idsN(1, 2, 3, 4, 6)

	mc := NewMatrixChange(self, oldMatrix, newMatrix, testParams())
	result := mc.CheckHolders(target)

	assert.NotContains(t, result.OldHolders, target)
	assert.NotContains(t, result.NewHolders, target)
}

// OldEqualsToNew detects identical multisets regardless of input
// order.
func TestOldEqualsToNew_OrderIndependent(t *testing.T) {
	self := idN(0)
	base := []int64{1, 2, 3, 4, 5}

	oldShuffled := append([]int64{}, base...)
	newShuffled := append([]int64{}, base...)
	rand.Shuffle(len(oldShuffled), func(i, j int) { oldShuffled[i], oldShuffled[j] = oldShuffled[j], oldShuffled[i] })
	rand.Shuffle(len(newShuffled), func(i, j int) { newShuffled[i], newShuffled[j] = newShuffled[j], newShuffled[i] })

	mc := NewMatrixChange(self, idsN(oldShuffled...), idsN(newShuffled...), testParams())
	assert.True(t, mc.OldEqualsToNew())
}

func TestOldEqualsToNew_DifferentSets(t *testing.T) {
	self := idN(0)
	mc := NewMatrixChange(self, idsN(1, 2, 3), idsN(1, 2, 4), testParams())
	assert.False(t, mc.OldEqualsToNew())
}

// Basic CheckPmidNodeStatus up/down detection.
func TestCheckPmidNodeStatus(t *testing.T) {
	self := idN(0)
	A, B, C, D, E := idN(1), idN(2), idN(3), idN(4), idN(5)
	oldMatrix := []address.NodeId{A, B, C}
	newMatrix := []address.NodeId{B, C, D}

	mc := NewMatrixChange(self, oldMatrix, newMatrix, testParams())
	status := mc.CheckPmidNodeStatus([]address.NodeId{A, B, D, E})

	assert.Equal(t, []address.NodeId{A}, status.NodesDown)
	assert.Equal(t, []address.NodeId{D}, status.NodesUp)
}

func TestCheckPmidNodeStatus_Idempotent(t *testing.T) {
	self := idN(0)
	mc := NewMatrixChange(self, idsN(1, 2, 3), idsN(2, 3, 4), testParams())
	input := idsN(1, 2, 4, 9)

	first := mc.CheckPmidNodeStatus(input)
	second := mc.CheckPmidNodeStatus(input)

	assert.Equal(t, first, second)

	upSet := toSet(first.NodesUp)
	for _, down := range first.NodesDown {
		_, inUp := upSet[down]
		assert.False(t, inUp, "up and down lists must be disjoint")
	}
}

// Proximal-range boundary is covered in the netstats package
// (EstimateInGroup); here we only check that OutwithRange/InProximalRange
// are reachable from CheckHolders at all.
func TestCheckHolders_OutOfRangeReturnsEmptyHolders(t *testing.T) {
	self := idN(0)
	// self is far from every matrix member and from target, and the
	// matrix is populated enough that self cannot be a holder.
	oldMatrix := idsN(100, 101, 102, 103, 104, 105, 106, 107)
	newMatrix := idsN(100, 101, 102, 103, 104, 105, 106, 107)
	target := idN(200)

	mc := NewMatrixChange(self, oldMatrix, newMatrix, testParams())
	result := mc.CheckHolders(target)

	assert.NotEqual(t, InRange, result.ProximityStatus)
	if result.ProximityStatus != InRange {
		assert.Empty(t, result.OldHolders)
		assert.Empty(t, result.NewHolders)
	}
}

// Strict ordering by closeness to self, no duplicates, no self.
func TestInvariant_SortedBySelfCloseness(t *testing.T) {
	self := idN(0)
	mc := NewMatrixChange(self, idsN(5, 1, 9, 2), idsN(9, 2, 5, 1), testParams())

	for _, sorted := range [][]address.NodeId{mc.OldSorted(), mc.NewSorted()} {
		for i := 1; i < len(sorted); i++ {
			assert.True(t, address.CloserToTarget(sorted[i-1], sorted[i], self),
				"expected strict self-closeness order at index %d", i)
		}
	}
}

// Lost is disjoint from new_sorted.
func TestInvariant_LostDisjointFromNew(t *testing.T) {
	self := idN(0)
	mc := NewMatrixChange(self, idsN(1, 2, 3, 4), idsN(2, 3, 5), testParams())

	newSet := toSet(mc.NewSorted())
	for _, l := range mc.Lost() {
		_, found := newSet[l]
		assert.False(t, found, "lost node %s must not appear in new_sorted", l.Hex())
	}
}

// new_holders and old_holders never overlap.
func TestInvariant_HolderListsDisjoint(t *testing.T) {
	self := idN(0)
	mc := NewMatrixChange(self, idsN(1, 2, 3, 4, 5), idsN(1, 2, 3, 4, 6), testParams())
	result := mc.CheckHolders(idN(0))

	oldSet := toSet(result.OldHolders)
	for _, n := range result.NewHolders {
		_, found := oldSet[n]
		assert.False(t, found)
	}
}

// Radius is always non-negative.
func TestInvariant_RadiusNonNegative(t *testing.T) {
	self := idN(0)
	mc := NewMatrixChange(self, idsN(1, 2), idsN(1, 2), testParams())
	assert.True(t, mc.Radius().Sign() >= 0)
}

func TestRadius_FallsBackToMaxDistanceWhenMatrixSmall(t *testing.T) {
	self := idN(0)
	params := config.Params{ClosestNodesSize: 8, NodeGroupSize: 4, ProximityFactor: 2}
	mc := NewMatrixChange(self, nil, idsN(1, 2), params)

	expectedDistance := self.Xor(address.MaxNodeId()).BigInt()
	expected := new(big.Int).Mul(expectedDistance, big.NewInt(int64(params.ProximityFactor)))
	assert.Equal(t, 0, expected.Cmp(mc.Radius()))
}
