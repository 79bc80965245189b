package accumulator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/pkg/encoding"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

func key(v uint64) types.PositionKey {
	return types.PositionKeyFromUint256(uint256.NewInt(v))
}

func createWeightedLeaves(n int, rng *rand.Rand) []types.WeightedLeaf {
	leaves := make([]types.WeightedLeaf, n)
	for i := range leaves {
		leaves[i] = types.WeightedLeaf{
			Key:    types.NewPositionKey(uint64(10+i/3), uint64(i%3)),
			Weight: uint64(rng.Intn(1000)),
		}
	}
	return leaves
}

func TestWeightedThreeLeafScenario(t *testing.T) {
	leaves := []types.WeightedLeaf{
		{Key: key(100), Weight: 5},
		{Key: key(101), Weight: 0},
		{Key: key(102), Weight: 15},
	}
	boundary := key(200)

	acc, err := CommitWeighted(leaves, boundary)
	require.NoError(t, err)

	root, ok := acc.Root()
	require.True(t, ok)
	assert.Equal(t, uint64(20), root.Weight)
	assert.Equal(t, 0, root.Min.Cmp(key(100)))
	assert.Equal(t, 0, root.Max.Cmp(boundary))
	assert.Equal(t, uint64(20), acc.TotalWeight())

	l0 := NewWeightedLeafNode(leaves[0])
	l1 := NewWeightedLeafNode(leaves[1])
	l2 := NewWeightedLeafNode(leaves[2])
	pad := PaddingNode(boundary)
	left := mergeWeighted(0, l0, l1)
	right := mergeWeighted(0, l2, pad)
	want := encoding.WeightedNode(1, left.Hash, right.Hash, 20, key(100), boundary)
	assert.Equal(t, want, root.Hash)

	wantPrefix := []uint64{0, 5, 5}
	for i, leaf := range leaves {
		proof, err := acc.GenerateProof(uint64(i))
		require.NoError(t, err)
		prefix, err := VerifyWeightedProof(root, leaf, uint64(i), proof)
		require.NoError(t, err)
		assert.Equal(t, wantPrefix[i], prefix, "leaf %d", i)
	}
}

func TestWeightedRootBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	boundary := types.NewBoundaryKey(1000)

	for n := 1; n <= 20; n++ {
		leaves := createWeightedLeaves(n, rng)
		acc, err := CommitWeighted(leaves, boundary)
		require.NoError(t, err)

		root, _ := acc.Root()
		assert.Equal(t, 0, root.Min.Cmp(leaves[0].Key), "n=%d", n)

		var total uint64
		for _, leaf := range leaves {
			total += leaf.Weight
		}
		assert.Equal(t, total, root.Weight, "n=%d", n)

		if n&(n-1) == 0 {
			assert.Equal(t, 0, root.Max.Cmp(leaves[n-1].Key), "n=%d", n)
		} else {
			assert.Equal(t, 0, root.Max.Cmp(boundary), "n=%d", n)
		}
	}
}

func TestWeightedPrefixSums(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	leaves := createWeightedLeaves(23, rng)
	acc, err := CommitWeighted(leaves, types.NewBoundaryKey(100))
	require.NoError(t, err)
	root, _ := acc.Root()

	var prefix uint64
	for i, leaf := range leaves {
		proof, err := acc.GenerateProof(uint64(i))
		require.NoError(t, err)
		got, err := VerifyWeightedProof(root, leaf, uint64(i), proof)
		require.NoError(t, err)
		require.Equal(t, prefix, got, "leaf %d", i)
		prefix += leaf.Weight
	}
}

func TestVerifyWeightedProofRejectsTampering(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	leaves := createWeightedLeaves(6, rng)
	acc, err := CommitWeighted(leaves, types.NewBoundaryKey(100))
	require.NoError(t, err)
	root, _ := acc.Root()

	proof, err := acc.GenerateProof(3)
	require.NoError(t, err)

	forged := leaves[3]
	forged.Weight++
	_, err = VerifyWeightedProof(root, forged, 3, proof)
	require.ErrorIs(t, err, ErrProofMismatch)

	proof[0].Weight++
	_, err = VerifyWeightedProof(root, leaves[3], 3, proof)
	require.ErrorIs(t, err, ErrProofMismatch)
}

func TestWeightedAppendErrors(t *testing.T) {
	t.Run("keys must increase", func(t *testing.T) {
		acc := NewWeighted(key(100))
		require.NoError(t, acc.Append(types.WeightedLeaf{Key: key(5), Weight: 1}))
		require.ErrorIs(t, acc.Append(types.WeightedLeaf{Key: key(5), Weight: 1}), types.ErrKeyOrder)
		require.ErrorIs(t, acc.Append(types.WeightedLeaf{Key: key(4), Weight: 1}), types.ErrKeyOrder)
		assert.Equal(t, uint64(1), acc.Len())
	})

	t.Run("keys must be below boundary", func(t *testing.T) {
		acc := NewWeighted(key(100))
		require.ErrorIs(t, acc.Append(types.WeightedLeaf{Key: key(100), Weight: 1}), types.ErrKeyOrder)
	})

	t.Run("weight overflow", func(t *testing.T) {
		acc := NewWeighted(key(100))
		require.NoError(t, acc.Append(types.WeightedLeaf{Key: key(1), Weight: math.MaxUint64}))
		err := acc.Append(types.WeightedLeaf{Key: key(2), Weight: 1})
		require.ErrorIs(t, err, types.ErrWeightOverflow)
		assert.Equal(t, uint64(math.MaxUint64), acc.TotalWeight())
		assert.Equal(t, uint64(1), acc.Len())
	})

	t.Run("finalized", func(t *testing.T) {
		acc, err := CommitWeighted([]types.WeightedLeaf{{Key: key(1), Weight: 1}}, key(100))
		require.NoError(t, err)
		require.ErrorIs(t, acc.Append(types.WeightedLeaf{Key: key(2), Weight: 1}), ErrFinalized)
	})
}

func TestWeightedEmpty(t *testing.T) {
	acc, err := CommitWeighted(nil, key(100))
	require.NoError(t, err)
	root, ok := acc.Root()
	require.True(t, ok)
	assert.Equal(t, encoding.SentinelHash, root.Hash)
	assert.Zero(t, root.Weight)
}
