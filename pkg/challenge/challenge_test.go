package challenge

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/pkg/encoding"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

func createLeaves(weights ...uint64) []types.WeightedLeaf {
	leaves := make([]types.WeightedLeaf, len(weights))
	for i, w := range weights {
		leaves[i] = types.WeightedLeaf{Key: types.NewPositionKey(1, uint64(i)), Weight: w}
	}
	return leaves
}

func TestDerive(t *testing.T) {
	root := common.HexToHash("0x5eed")

	t.Run("matches seed modulo total", func(t *testing.T) {
		seed := encoding.ChallengeSeed(root, 3)
		want := new(uint256.Int).SetBytes(seed[:])
		want.Mod(want, uint256.NewInt(1000))

		g, err := Derive(root, 1000, 3)
		require.NoError(t, err)
		assert.Equal(t, want.Uint64(), g)
	})

	t.Run("within range", func(t *testing.T) {
		for nonce := uint64(0); nonce < 200; nonce++ {
			g, err := Derive(root, 7, nonce)
			require.NoError(t, err)
			assert.Less(t, g, uint64(7))
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := Derive(root, math.MaxUint64, 9)
		require.NoError(t, err)
		b, err := Derive(root, math.MaxUint64, 9)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("zero total", func(t *testing.T) {
		_, err := Derive(root, 0, 0)
		require.ErrorIs(t, err, types.ErrZeroTotalWeight)
	})
}

func TestResolve(t *testing.T) {
	leaves := createLeaves(5, 0, 12, 3)

	tests := []struct {
		name       string
		g          uint64
		wantIndex  int
		wantPrefix uint64
	}{
		{"start of first", 0, 0, 0},
		{"end of first", 4, 0, 0},
		{"skips zero weight", 5, 2, 5},
		{"middle", 10, 2, 5},
		{"end of third", 16, 2, 5},
		{"last", 17, 3, 17},
		{"final point", 19, 3, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, prefix, err := Resolve(leaves, tt.g)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, index)
			assert.Equal(t, tt.wantPrefix, prefix)
			assert.True(t, VerifyPosition(prefix, leaves[index].Weight, tt.g))
		})
	}

	t.Run("beyond total", func(t *testing.T) {
		_, _, err := Resolve(leaves, 20)
		require.ErrorIs(t, err, types.ErrUnresolvableChallenge)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := Resolve(nil, 0)
		require.ErrorIs(t, err, types.ErrUnresolvableChallenge)
	})

	t.Run("overflow", func(t *testing.T) {
		_, _, err := Resolve(createLeaves(math.MaxUint64, 1), 0)
		require.ErrorIs(t, err, types.ErrWeightOverflow)
	})
}

func TestResolveFrequency(t *testing.T) {
	weights := []uint64{10, 20, 30, 40}
	sampler, err := NewSampler(createLeaves(weights...))
	require.NoError(t, err)

	const draws = 10000
	rng := rand.New(rand.NewSource(1))
	counts := make([]int, len(weights))
	for i := 0; i < draws; i++ {
		g := uint64(rng.Int63n(int64(sampler.TotalWeight())))
		index, _, err := sampler.Resolve(g)
		require.NoError(t, err)
		counts[index]++
	}

	for i, w := range weights {
		expected := float64(draws) * float64(w) / 100
		assert.InDelta(t, expected, float64(counts[i]), expected*0.15, "leaf %d", i)
	}
}

func TestVerifyPosition(t *testing.T) {
	assert.True(t, VerifyPosition(10, 5, 10))
	assert.True(t, VerifyPosition(10, 5, 14))
	assert.False(t, VerifyPosition(10, 5, 15))
	assert.False(t, VerifyPosition(10, 5, 9))
	assert.False(t, VerifyPosition(10, 0, 10))
	assert.True(t, VerifyPosition(math.MaxUint64, math.MaxUint64, math.MaxUint64))
}

func TestConfidenceBound(t *testing.T) {
	assert.Equal(t, Alpha(0), ConfidenceBound(0))
	assert.Equal(t, Alpha(0), ConfidenceBound(1))
	assert.Equal(t, Alpha(0), ConfidenceBound(4))

	// (m/2^20)^5 < 2^-80 <=> m^5 < 2^20 <=> m <= 15
	assert.Equal(t, Alpha(15), ConfidenceBound(5))
	// m^8 < 2^80 <=> m < 1024
	assert.Equal(t, Alpha(1023), ConfidenceBound(8))

	prev := ConfidenceBound(0)
	for i := 1; i <= 400; i++ {
		cur := ConfidenceBound(i)
		require.GreaterOrEqual(t, cur, prev, "round %d", i)
		prev = cur
	}
	assert.Greater(t, ConfidenceBound(400).Float(), 0.8)
	assert.Less(t, ConfidenceBound(400).Float(), 1.0)
}

func TestDeriveRounds(t *testing.T) {
	leaves := createLeaves(10, 20, 30, 40)
	sampler, err := NewSampler(leaves)
	require.NoError(t, err)
	root := common.HexToHash("0xabc")

	rounds, err := DeriveRounds(context.Background(), root, sampler, 32)
	require.NoError(t, err)
	require.Len(t, rounds, 32)

	for i, r := range rounds {
		require.Equal(t, uint64(i), r.Nonce)
		g, err := Derive(root, 100, r.Nonce)
		require.NoError(t, err)
		assert.Equal(t, g, r.Point)
		assert.True(t, VerifyPosition(r.Prefix, r.Leaf.Weight, r.Point))
		assert.Equal(t, leaves[r.LeafIndex], r.Leaf)
		assert.Equal(t, ConfidenceBound(i), r.Alpha)
	}

	t.Run("zero weight", func(t *testing.T) {
		empty, err := NewSampler(createLeaves(0, 0))
		require.NoError(t, err)
		_, err = DeriveRounds(context.Background(), root, empty, 1)
		require.ErrorIs(t, err, types.ErrZeroTotalWeight)
	})

	t.Run("round limit", func(t *testing.T) {
		_, err := DeriveRounds(context.Background(), root, sampler, MaxRounds+1)
		require.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := DeriveRounds(ctx, root, sampler, 4)
		require.ErrorIs(t, err, context.Canceled)
	})
}
