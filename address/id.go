// Package address provides the fixed-width identifier type and XOR-metric
// ordering used throughout the routing core.
package address

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the width of a NodeId in bytes (512 bits).
const Size = 64

// NodeId is a 512-bit unsigned integer used as a node or target address in
// the XOR-metric overlay. Values are immutable once constructed; all
// operations return new values rather than mutating the receiver.
type NodeId [Size]byte

// RandomNodeId returns a NodeId drawn from a cryptographically secure
// source of randomness.
func RandomNodeId() (NodeId, error) {
	var id NodeId
	if _, err := rand.Read(id[:]); err != nil {
		return NodeId{}, fmt.Errorf("address: generate random id: %w", err)
	}
	return id, nil
}

// MaxNodeId returns the largest representable NodeId (all bits set).
func MaxNodeId() NodeId {
	var id NodeId
	for i := range id {
		id[i] = 0xFF
	}
	return id
}

// NodeIdFromBytes builds a NodeId from a raw byte slice. The slice must be
// exactly Size bytes long.
func NodeIdFromBytes(b []byte) (NodeId, error) {
	var id NodeId
	if len(b) != Size {
		return id, fmt.Errorf("address: expected %d raw bytes, got %d", Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// NodeIdFromHex parses a lowercase or uppercase hex-encoded NodeId.
func NodeIdFromHex(s string) (NodeId, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return NodeId{}, fmt.Errorf("address: decode hex id: %w", err)
	}
	return NodeIdFromBytes(raw)
}

// NodeIdFromBigInt re-encodes a non-negative big.Int as a NodeId, padding
// with leading zero bytes or truncating high-order bits as needed so the
// result always occupies exactly Size bytes. Truncation only matters for
// callers that hand in an already out-of-range value; the arithmetic in
// this module that feeds it (netstats' running average) never produces one.
func NodeIdFromBigInt(v *big.Int) NodeId {
	var id NodeId
	raw := v.Bytes()
	if len(raw) > Size {
		raw = raw[len(raw)-Size:]
	}
	copy(id[Size-len(raw):], raw)
	return id
}

// Bytes returns the raw big-endian byte representation.
func (id NodeId) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// BigInt returns the value of id interpreted as an unsigned big-endian
// integer, for use in arithmetic that may overflow 512 bits (radius,
// running averages).
func (id NodeId) BigInt() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Hex returns the lowercase, fixed-width hex encoding of id.
func (id NodeId) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id NodeId) String() string {
	return id.Hex()
}

// Equal reports whether id and other represent the same address.
func (id NodeId) Equal(other NodeId) bool {
	return id == other
}

// Xor returns the bitwise XOR of id and other, interpreted as the XOR
// distance between the two addresses.
func (id NodeId) Xor(other NodeId) NodeId {
	var out NodeId
	for i := range out {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// Less reports whether id, as an unsigned big-endian integer, is strictly
// less than other. Byte-wise comparison is equivalent to big-integer
// comparison for fixed-width big-endian encodings.
func (id NodeId) Less(other NodeId) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// CloserToTarget reports whether a lies strictly closer to target than b
// does, under the XOR metric: (a XOR target) < (b XOR target). Ties
// (a == b) return false, as required for use as a strict-weak ordering in
// sorts and set operations.
func CloserToTarget(a, b, target NodeId) bool {
	return a.Xor(target).Less(b.Xor(target))
}

// NodeInfo gives external layers (the Replication Planner,
// CloseNodeReplacedFunc) a minimal concrete view of a peer: its id and an
// opaque endpoint string never interpreted by this package. Everything
// beyond these two fields is the external layer's own concern.
type NodeInfo struct {
	ID       NodeId
	Endpoint string
}
