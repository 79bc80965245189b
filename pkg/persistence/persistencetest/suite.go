// Package persistencetest holds the behaviour every IAuditPersistence
// implementation is expected to share, as a reusable test suite.
package persistencetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/pkg/accumulator"
	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// NewTestSession returns a session record over [from, from+10) with a
// deterministic root derived from id.
func NewTestSession(id string, from uint64, createdAt time.Time) *audit.Session {
	return &audit.Session{
		ID:               id,
		FromBlock:        from,
		ToBlock:          from + 10,
		IncludeRemainder: true,
		CreatedAt:        createdAt.UTC(),
		BlockRoot:        crypto.Keccak256Hash([]byte("blocks:" + id)),
		WeightRoot: accumulator.WeightedNode{
			Hash:   crypto.Keccak256Hash([]byte("weights:" + id)),
			Weight: 300_000_000,
			Min:    types.NewPositionKey(from, 0),
			Max:    types.NewBoundaryKey(from + 10),
		},
		Boundary:  types.NewBoundaryKey(from + 10),
		LeafCount: 42,
	}
}

// NewTestBundles returns n bundles for sessionID. Remainder leaves are used
// for odd rounds so both evidence shapes are stored.
func NewTestBundles(sessionID string, n int) []*audit.Bundle {
	bundles := make([]*audit.Bundle, n)
	for i := range bundles {
		block := uint64(100 + i)
		leaf := types.WeightedLeaf{Key: types.NewPositionKey(block, uint64(i)), Weight: uint64(21000 + i)}
		b := &audit.Bundle{
			SessionID: sessionID,
			Round: &challenge.Round{
				Nonce:     uint64(i),
				Point:     uint64(i * 1000),
				LeafIndex: i,
				Prefix:    uint64(i * 900),
				Leaf:      leaf,
				Alpha:     challenge.ConfidenceBound(i),
			},
			WeightProof: []accumulator.WeightedNode{accumulator.PaddingNode(types.NewBoundaryKey(200))},
			BlockIndex:  uint64(i),
			BlockHash:   crypto.Keccak256Hash([]byte(fmt.Sprintf("block:%d", block))),
			BlockProof:  []common.Hash{crypto.Keccak256Hash([]byte("sibling"))},
			Header:      []byte{0xc0},
		}
		if i%2 == 1 {
			b.Round.Leaf.Key = types.NewBlockRemainderKey(block)
		} else {
			b.Transaction = &audit.TrieEvidence{
				Root:  crypto.Keccak256Hash([]byte("txroot")),
				Key:   []byte{0x80},
				Value: []byte{0x01, 0x02},
			}
		}
		bundles[i] = b
	}
	return bundles
}

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) persistence.IAuditPersistence

// Run exercises the shared contract of IAuditPersistence.
func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndLoadSession", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		session := NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
		require.NoError(t, p.SaveSession(session))

		loaded, err := p.LoadSession(session.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assertSessionEqual(t, session, loaded)
		assert.False(t, loaded.Loaded())
	})

	t.Run("LoadNonExistentSession", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		loaded, err := p.LoadSession(uuid.New().String())
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveSessionOverwrites", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		session := NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
		require.NoError(t, p.SaveSession(session))

		session.LeafCount = 7
		require.NoError(t, p.SaveSession(session))

		loaded, err := p.LoadSession(session.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, uint64(7), loaded.LeafCount)
	})

	t.Run("SaveNilSession", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		assert.Error(t, p.SaveSession(nil))
		assert.Error(t, p.SaveSession(&audit.Session{}))
	})

	t.Run("ListSessionsSorted", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		base := time.Unix(1_700_000_000, 0)
		ids := []string{uuid.New().String(), uuid.New().String(), uuid.New().String()}
		// Saved out of order on purpose.
		require.NoError(t, p.SaveSession(NewTestSession(ids[2], 300, base.Add(2*time.Hour))))
		require.NoError(t, p.SaveSession(NewTestSession(ids[0], 100, base)))
		require.NoError(t, p.SaveSession(NewTestSession(ids[1], 200, base.Add(time.Hour))))

		sessions, err := p.ListSessions()
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		for i, s := range sessions {
			assert.Equal(t, ids[i], s.ID)
		}
	})

	t.Run("ListSessionsEmpty", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		sessions, err := p.ListSessions()
		require.NoError(t, err)
		assert.NotNil(t, sessions)
		assert.Empty(t, sessions)
	})

	t.Run("SaveAndLoadBundles", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		session := NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
		require.NoError(t, p.SaveSession(session))

		bundles := NewTestBundles(session.ID, 4)
		require.NoError(t, p.SaveBundles(session.ID, bundles))

		loaded, err := p.LoadBundles(session.ID)
		require.NoError(t, err)
		require.Len(t, loaded, 4)
		for i, b := range loaded {
			assert.Equal(t, bundles[i].Round.Nonce, b.Round.Nonce)
			assert.Equal(t, bundles[i].Round.Leaf.Key, b.Round.Leaf.Key)
			assert.Equal(t, bundles[i].Round.Alpha, b.Round.Alpha)
			assert.Equal(t, bundles[i].BlockHash, b.BlockHash)
			assert.Equal(t, bundles[i].BlockProof, b.BlockProof)
			assert.Equal(t, bundles[i].Transaction == nil, b.Transaction == nil)
			require.Len(t, b.WeightProof, 1)
			assert.True(t, bundles[i].WeightProof[0].Equal(b.WeightProof[0]))
		}

		// A later run replaces the earlier bundles.
		require.NoError(t, p.SaveBundles(session.ID, NewTestBundles(session.ID, 2)))
		loaded, err = p.LoadBundles(session.ID)
		require.NoError(t, err)
		assert.Len(t, loaded, 2)
	})

	t.Run("LoadBundlesMissing", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		loaded, err := p.LoadBundles(uuid.New().String())
		require.NoError(t, err)
		assert.NotNil(t, loaded)
		assert.Empty(t, loaded)
	})

	t.Run("SaveBundlesRejectsForeignSession", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		id := uuid.New().String()
		assert.Error(t, p.SaveBundles("", NewTestBundles(id, 1)))
		assert.Error(t, p.SaveBundles(id, NewTestBundles(uuid.New().String(), 1)))
		assert.Error(t, p.SaveBundles(id, []*audit.Bundle{nil}))
	})

	t.Run("DeleteSessionRemovesBundles", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		session := NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
		require.NoError(t, p.SaveSession(session))
		require.NoError(t, p.SaveBundles(session.ID, NewTestBundles(session.ID, 3)))

		require.NoError(t, p.DeleteSession(session.ID))

		loaded, err := p.LoadSession(session.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		bundles, err := p.LoadBundles(session.ID)
		require.NoError(t, err)
		assert.Empty(t, bundles)

		sessions, err := p.ListSessions()
		require.NoError(t, err)
		for _, s := range sessions {
			assert.NotEqual(t, session.ID, s.ID)
		}

		// Idempotent
		require.NoError(t, p.DeleteSession(session.ID))
	})

	t.Run("StoredCopiesAreIndependent", func(t *testing.T) {
		p := newStore(t)
		defer func() { _ = p.Close() }()

		session := NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
		require.NoError(t, p.SaveSession(session))
		session.LeafCount = 0

		loaded, err := p.LoadSession(session.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, uint64(42), loaded.LeafCount)

		loaded.FromBlock = 0
		again, err := p.LoadSession(session.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), again.FromBlock)
	})

	t.Run("HealthCheck", func(t *testing.T) {
		p := newStore(t)
		require.NoError(t, p.HealthCheck())
		require.NoError(t, p.Close())
		assert.Error(t, p.HealthCheck())
	})

	t.Run("OperationsAfterClose", func(t *testing.T) {
		p := newStore(t)
		require.NoError(t, p.Close())
		// Idempotent
		require.NoError(t, p.Close())

		session := NewTestSession(uuid.New().String(), 100, time.Unix(1_700_000_000, 0))
		assert.Error(t, p.SaveSession(session))
		_, err := p.LoadSession(session.ID)
		assert.Error(t, err)
		_, err = p.ListSessions()
		assert.Error(t, err)
		assert.Error(t, p.DeleteSession(session.ID))
		assert.Error(t, p.SaveBundles(session.ID, NewTestBundles(session.ID, 1)))
		_, err = p.LoadBundles(session.ID)
		assert.Error(t, err)
	})
}

func assertSessionEqual(t *testing.T, expected, actual *audit.Session) {
	t.Helper()
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.FromBlock, actual.FromBlock)
	assert.Equal(t, expected.ToBlock, actual.ToBlock)
	assert.Equal(t, expected.IncludeRemainder, actual.IncludeRemainder)
	assert.True(t, expected.CreatedAt.Equal(actual.CreatedAt))
	assert.Equal(t, expected.BlockRoot, actual.BlockRoot)
	assert.True(t, expected.WeightRoot.Equal(actual.WeightRoot))
	assert.Equal(t, expected.Boundary, actual.Boundary)
	assert.Equal(t, expected.LeafCount, actual.LeafCount)
}
