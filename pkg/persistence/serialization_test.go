package persistence

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/pkg/accumulator"
	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

func testSession(id string, createdAt time.Time) *audit.Session {
	boundary := types.NewBoundaryKey(110)
	return &audit.Session{
		ID:        id,
		FromBlock: 100,
		ToBlock:   110,
		CreatedAt: createdAt,
		BlockRoot: crypto.Keccak256Hash([]byte(id)),
		WeightRoot: accumulator.WeightedNode{
			Hash:   crypto.Keccak256Hash([]byte("weights")),
			Weight: 1234,
			Min:    types.NewPositionKey(100, 0),
			Max:    boundary,
		},
		Boundary:  boundary,
		LeafCount: 9,
	}
}

func TestMarshalUnmarshalSession_RoundTrip(t *testing.T) {
	original := testSession("session-1", time.Unix(1_700_000_000, 0).UTC())

	data, err := MarshalSession(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalSession(data)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.FromBlock, restored.FromBlock)
	assert.Equal(t, original.ToBlock, restored.ToBlock)
	assert.True(t, original.CreatedAt.Equal(restored.CreatedAt))
	assert.Equal(t, original.BlockRoot, restored.BlockRoot)
	assert.True(t, original.WeightRoot.Equal(restored.WeightRoot))
	assert.Equal(t, original.Boundary, restored.Boundary)
	assert.Equal(t, original.LeafCount, restored.LeafCount)
}

func TestMarshalSession_InvalidInput(t *testing.T) {
	_, err := MarshalSession(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil Session")

	_, err = MarshalSession(&audit.Session{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without ID")
}

func TestUnmarshalSession_InvalidInput(t *testing.T) {
	_, err := UnmarshalSession(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty data")

	_, err = UnmarshalSession([]byte("{invalid json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestMarshalUnmarshalBundleSet_RoundTrip(t *testing.T) {
	leaf := types.WeightedLeaf{Key: types.NewBlockRemainderKey(105), Weight: 77}
	bundles := []*audit.Bundle{{
		SessionID: "session-1",
		Round: &challenge.Round{
			Nonce:     5,
			Point:     900,
			LeafIndex: 3,
			Prefix:    850,
			Leaf:      leaf,
			Alpha:     challenge.ConfidenceBound(5),
		},
		WeightProof: []accumulator.WeightedNode{accumulator.NewWeightedLeafNode(leaf)},
		BlockIndex:  5,
		Header:      []byte{0xc0},
	}}

	set, err := NewBundleSet("session-1", bundles, 1_700_000_000)
	require.NoError(t, err)

	data, err := MarshalBundleSet(set)
	require.NoError(t, err)

	restored, err := UnmarshalBundleSet(data)
	require.NoError(t, err)
	assert.Equal(t, "session-1", restored.SessionID)
	assert.Equal(t, int64(1_700_000_000), restored.SavedAt)
	require.Len(t, restored.Bundles, 1)

	b := restored.Bundles[0]
	assert.Equal(t, *bundles[0].Round, *b.Round)
	assert.True(t, b.Round.Leaf.Key.IsBlockRemainder())
	assert.Nil(t, b.Transaction)
	assert.Nil(t, b.PrevReceipt)
	require.Len(t, b.WeightProof, 1)
	assert.True(t, bundles[0].WeightProof[0].Equal(b.WeightProof[0]))
}

func TestNewBundleSet_Validation(t *testing.T) {
	_, err := NewBundleSet("", nil, 0)
	assert.Error(t, err)

	_, err = NewBundleSet("a", []*audit.Bundle{{SessionID: "b"}}, 0)
	assert.Error(t, err)

	_, err = NewBundleSet("a", []*audit.Bundle{nil}, 0)
	assert.Error(t, err)

	set, err := NewBundleSet("a", nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, set.Bundles)
}

func TestSortSessions(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	sessions := []*audit.Session{
		testSession("c", base.Add(time.Minute)),
		testSession("b", base),
		testSession("a", base),
	}

	SortSessions(sessions)

	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)
	assert.Equal(t, "c", sessions[2].ID)
}

func TestMarshalBundleSet_Nil(t *testing.T) {
	_, err := MarshalBundleSet(nil)
	assert.Error(t, err)

	_, err = UnmarshalBundleSet(nil)
	assert.Error(t, err)
}
