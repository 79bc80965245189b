package types

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// RangeBits is the width of the slot part of a PositionKey. A key packs
// blockNumber*2^RangeBits + slot, so any slot index fits below RangeModulus.
const RangeBits = 128

// RangeModulus is 2^RangeBits.
var RangeModulus = new(uint256.Int).Lsh(uint256.NewInt(1), RangeBits)

// PositionKey identifies a weighted leaf by block number and slot. The slot is
// either a transaction index or BlockRemainderSlot, which marks the unused gas
// of the block.
type PositionKey struct {
	v uint256.Int
}

// NewPositionKey packs a block number and transaction index.
func NewPositionKey(blockNumber uint64, txIndex uint64) PositionKey {
	var k PositionKey
	k.v[2] = blockNumber
	k.v[0] = txIndex
	return k
}

// NewBlockRemainderKey returns the key reserved for the leftover capacity of a block.
func NewBlockRemainderKey(blockNumber uint64) PositionKey {
	var k PositionKey
	k.v[2] = blockNumber
	k.v[1] = math.MaxUint64
	k.v[0] = math.MaxUint64
	return k
}

// NewBoundaryKey returns the first key of blockNumber, used as the exclusive
// upper bound of a range that ends before blockNumber.
func NewBoundaryKey(blockNumber uint64) PositionKey {
	return NewPositionKey(blockNumber, 0)
}

// PositionKeyFromUint256 wraps a raw packed value.
func PositionKeyFromUint256(v *uint256.Int) PositionKey {
	return PositionKey{v: *v}
}

func (k PositionKey) BlockNumber() uint64 {
	return k.v[2]
}

// TxIndex returns the transaction index and false when the key is a block
// remainder marker or the slot does not fit a uint64.
func (k PositionKey) TxIndex() (uint64, bool) {
	if k.IsBlockRemainder() || k.v[1] != 0 {
		return 0, false
	}
	return k.v[0], true
}

func (k PositionKey) IsBlockRemainder() bool {
	return k.v[0] == math.MaxUint64 && k.v[1] == math.MaxUint64
}

func (k PositionKey) Cmp(other PositionKey) int {
	return k.v.Cmp(&other.v)
}

func (k PositionKey) Lt(other PositionKey) bool {
	return k.v.Lt(&other.v)
}

// Uint256 returns a copy of the packed value.
func (k PositionKey) Uint256() *uint256.Int {
	v := k.v
	return &v
}

// Bytes32 returns the big-endian 32 byte encoding.
func (k PositionKey) Bytes32() [32]byte {
	return k.v.Bytes32()
}

func (k PositionKey) String() string {
	return k.v.Dec()
}

func (k PositionKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.v.Dec())
}

func (k *PositionKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("position key must be a decimal string: %w", err)
	}
	if err := k.v.SetFromDecimal(s); err != nil {
		return fmt.Errorf("invalid position key %q: %w", s, err)
	}
	return nil
}

// WeightedLeaf is a single (position, weight) pair of the weighted commitment,
// either one transaction's gas used or the unused gas of a block.
type WeightedLeaf struct {
	Key    PositionKey `json:"key"`
	Weight uint64      `json:"weight"`
}

// TrieKind selects which per-block trie a proof is taken from.
type TrieKind int

const (
	TrieKindTransaction TrieKind = iota
	TrieKindReceipt
)

func (k TrieKind) String() string {
	switch k {
	case TrieKindTransaction:
		return "transaction"
	case TrieKindReceipt:
		return "receipt"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}
