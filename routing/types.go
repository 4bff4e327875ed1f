package routing

import "github.com/meshkad/routingcore/address"

// DestinationType mirrors the original Functors API's destination kinds; the
// routing core itself never inspects this value, but external layers use it
// to choose a send path and it is pinned here for interface compatibility.
type DestinationType int

const (
	Direct DestinationType = iota
	Closest
	Group
)

func (d DestinationType) String() string {
	switch d {
	case Direct:
		return "direct"
	case Closest:
		return "closest"
	case Group:
		return "group"
	default:
		return "unknown"
	}
}

// GroupRangeStatus describes where self sits relative to a target's holder
// group.
type GroupRangeStatus int

const (
	// InRange means self is itself one of the target's holders.
	InRange GroupRangeStatus = iota
	// InProximalRange means self is not a holder but lies within the
	// group's proximal radius.
	InProximalRange
	// OutwithRange means self is neither a holder nor within range.
	OutwithRange
)

func (s GroupRangeStatus) String() string {
	switch s {
	case InRange:
		return "in_range"
	case InProximalRange:
		return "in_proximal_range"
	case OutwithRange:
		return "outwith_range"
	default:
		return "unknown"
	}
}

// CheckHoldersResult is the output of MatrixChange.CheckHolders.
type CheckHoldersResult struct {
	ProximityStatus GroupRangeStatus
	OldHolders      []address.NodeId
	NewHolders      []address.NodeId
}

// PmidNodeStatus is the output of MatrixChange.CheckPmidNodeStatus.
type PmidNodeStatus struct {
	NodesUp   []address.NodeId
	NodesDown []address.NodeId
}
