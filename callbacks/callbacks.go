// Package callbacks pins the function shapes that external routing-stack
// layers are expected to supply or consume around this module's core. The
// core never invokes any of these itself; they are named here only so that
// the core's own interfaces (NodeInfo, DestinationType, GroupRangeStatus)
// line up with what a caller's Functors bundle will actually pass around,
// mirroring the original overlay's api_config.h Functors struct.
package callbacks

import "github.com/meshkad/routingcore/address"

// ReplyFunc sends a response to a previously received message. Passing a
// nil or empty message means the caller does not want to reply.
type ReplyFunc func(message []byte)

// MessageReceivedFunc is invoked by the external layer for any inbound
// message that is not itself a reply to a Send the caller made.
type MessageReceivedFunc func(payload []byte, wasCacheLookup bool, reply ReplyFunc)

// CloseNodeReplacedFunc fires when the external routing table layer
// inserts a new close node. Upper layers are expected to replicate
// key/value pairs between self and the new node to it, and may safely
// drop data keyed further away than the current furthest matrix member.
type CloseNodeReplacedFunc func(newCloseNodes []address.NodeInfo)

// NetworkStatusFunc reports an integer 0-100 representing perceived
// network health.
type NetworkStatusFunc func(percentHealthy int)

// GivePublicKeyFunc supplies a previously requested public key.
type GivePublicKeyFunc func(publicKey []byte)

// RequestPublicKeyFunc asks the external layer to validate a newly seen
// peer id and, once validated, invoke give with its public key.
type RequestPublicKeyFunc func(id address.NodeId, give GivePublicKeyFunc)

// HaveCacheDataFunc asks whether cached data exists for the current
// request; ok is false when there is nothing cached.
type HaveCacheDataFunc func() (data []byte, ok bool)

// StoreCacheDataFunc stores data observed in transit for future cache
// lookups.
type StoreCacheDataFunc func(data []byte)

// Functors bundles the callback shapes a routing-stack caller wires up,
// mirroring the original Functors aggregate. The core never populates or
// invokes any of these fields; they exist purely as a pinned contract
// between the external message-dispatch layer and whatever consumes this
// module's CheckHolders/NetworkStatistics output.
type Functors struct {
	MessageReceived   MessageReceivedFunc
	NetworkStatus     NetworkStatusFunc
	CloseNodeReplaced CloseNodeReplacedFunc
	GivePublicKey     GivePublicKeyFunc
	RequestPublicKey  RequestPublicKeyFunc
	HaveCacheData     HaveCacheDataFunc
	StoreCacheData    StoreCacheDataFunc
}
