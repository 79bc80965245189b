// Package challenge derives Fiat-Shamir sample points from a weighted
// commitment, resolves them to leaves by prefix sum, and computes the
// confidence bound reached after a number of accepted rounds.
package challenge

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/gasaudit-go/pkg/encoding"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// Derive maps (root, nonce) to a sample point in [0, totalWeight).
func Derive(root common.Hash, totalWeight uint64, nonce uint64) (uint64, error) {
	if totalWeight == 0 {
		return 0, types.ErrZeroTotalWeight
	}
	seed := encoding.ChallengeSeed(root, nonce)
	v := new(uint256.Int).SetBytes32(seed[:])
	v.Mod(v, uint256.NewInt(totalWeight))
	return v.Uint64(), nil
}

// Sampler resolves sample points over a fixed weighted leaf sequence.
type Sampler struct {
	leaves     []types.WeightedLeaf
	cumulative []uint64
}

func NewSampler(leaves []types.WeightedLeaf) (*Sampler, error) {
	cumulative := make([]uint64, len(leaves))
	var total uint64
	for i, leaf := range leaves {
		var carry uint64
		total, carry = bits.Add64(total, leaf.Weight, 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: leaf %d", types.ErrWeightOverflow, i)
		}
		cumulative[i] = total
	}
	return &Sampler{leaves: leaves, cumulative: cumulative}, nil
}

func (s *Sampler) TotalWeight() uint64 {
	if len(s.cumulative) == 0 {
		return 0
	}
	return s.cumulative[len(s.cumulative)-1]
}

func (s *Sampler) Len() int {
	return len(s.leaves)
}

func (s *Sampler) Leaf(index int) types.WeightedLeaf {
	return s.leaves[index]
}

// Resolve returns the first leaf whose inclusive cumulative weight reaches
// g+1, along with the total weight of the leaves before it. Zero-weight
// leaves are never selected.
func (s *Sampler) Resolve(g uint64) (index int, prefix uint64, err error) {
	index = sort.Search(len(s.cumulative), func(i int) bool {
		return s.cumulative[i] > g
	})
	if index == len(s.cumulative) {
		return 0, 0, fmt.Errorf("%w: point %d, total weight %d", types.ErrUnresolvableChallenge, g, s.TotalWeight())
	}
	return index, s.cumulative[index] - s.leaves[index].Weight, nil
}

// Resolve is a one-shot form of Sampler.Resolve.
func Resolve(leaves []types.WeightedLeaf, g uint64) (index int, prefix uint64, err error) {
	s, err := NewSampler(leaves)
	if err != nil {
		return 0, 0, err
	}
	return s.Resolve(g)
}

// VerifyPosition reports whether a leaf with the given prefix sum and weight
// covers the sample point g.
func VerifyPosition(prefix, weight, g uint64) bool {
	end, carry := bits.Add64(prefix, weight, 0)
	if carry != 0 {
		return prefix <= g
	}
	return prefix <= g && g < end
}
