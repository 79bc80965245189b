package chaindata_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/pkg/chaindata"
	"github.com/Layr-Labs/gasaudit-go/pkg/testutil"
	"github.com/Layr-Labs/gasaudit-go/pkg/trieproof"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

func createTestSource(t *testing.T, start uint64, txCounts []int) *chaindata.MemorySource {
	t.Helper()
	blocks, receipts := testutil.CreateTestChain(t, start, txCounts)
	src := chaindata.NewMemorySource()
	for i, block := range blocks {
		require.NoError(t, src.AddBlock(block, receipts[i]))
	}
	return src
}

func TestMemorySourceBlocks(t *testing.T) {
	ctx := context.Background()
	blocks, receipts := testutil.CreateTestChain(t, 100, []int{2, 0, 5})
	src := chaindata.NewMemorySource()
	for i, block := range blocks {
		require.NoError(t, src.AddBlock(block, receipts[i]))
	}

	hashes, err := src.GetBlockHashes(ctx, 100, 103)
	require.NoError(t, err)
	require.Len(t, hashes, 3)
	for i, block := range blocks {
		assert.Equal(t, block.Hash(), hashes[i])
	}

	header, err := src.GetHeader(ctx, 102)
	require.NoError(t, err)
	assert.Equal(t, blocks[2].Hash(), header.Hash())

	_, err = src.GetBlockHashes(ctx, 100, 104)
	require.ErrorIs(t, err, chaindata.ErrBlockNotFound)

	count, err := src.GetTransactionCount(ctx, 101)
	require.NoError(t, err)
	assert.Zero(t, count)

	remainder, err := src.GetBlockRemainder(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, uint64(testutil.TestGasLimit), remainder)
}

func TestMemorySourceWeights(t *testing.T) {
	ctx := context.Background()
	src := createTestSource(t, 10, []int{4})

	var total uint64
	for i := 0; i < 4; i++ {
		w, err := src.GetTransactionWeight(ctx, 10, i)
		require.NoError(t, err)
		assert.Equal(t, testutil.TestTransactionGas(10, i), w)
		total += w
	}

	remainder, err := src.GetBlockRemainder(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(testutil.TestGasLimit)-total, remainder)

	_, err = src.GetTransactionWeight(ctx, 10, 4)
	require.ErrorIs(t, err, chaindata.ErrTransactionNotFound)
}

func TestMemorySourceTrieProofs(t *testing.T) {
	ctx := context.Background()
	blocks, receipts := testutil.CreateTestChain(t, 7, []int{1, 3, 20})
	src := chaindata.NewMemorySource()
	for i, block := range blocks {
		require.NoError(t, src.AddBlock(block, receipts[i]))
	}

	for i, block := range blocks {
		header := block.Header()
		for txIndex := range block.Transactions() {
			for _, kind := range []types.TrieKind{types.TrieKindTransaction, types.TrieKindReceipt} {
				proof, err := src.GetRawTrieProof(ctx, block.NumberU64(), txIndex, kind)
				require.NoError(t, err)

				wantRoot := header.TxHash
				if kind == types.TrieKindReceipt {
					wantRoot = header.ReceiptHash
				}
				require.Equal(t, wantRoot, proof.Root, "block %d %s %d", i, kind, txIndex)
				require.Equal(t, rlp.AppendUint64(nil, uint64(txIndex)), []byte(proof.Key))

				pair, err := trieproof.Compact(proof.RawNodes(), proof.Key)
				require.NoError(t, err)
				require.NoError(t, trieproof.Verify(proof.Root, proof.Key, proof.Value, pair))
			}
		}
	}
}

func TestMemorySourceRejectsMismatchedReceipts(t *testing.T) {
	blocks, receipts := testutil.CreateTestChain(t, 1, []int{3})
	src := chaindata.NewMemorySource()

	require.Error(t, src.AddBlock(blocks[0], receipts[0][:2]))

	receipts[0][1].CumulativeGasUsed++
	require.Error(t, src.AddBlock(blocks[0], receipts[0]))
}

func TestFixtureRoundTrip(t *testing.T) {
	ctx := context.Background()
	blocks, receipts := testutil.CreateTestChain(t, 50, []int{3, 1})

	fixture, err := chaindata.NewFixture(blocks, receipts)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fixture.json")
	require.NoError(t, fixture.Save(path))

	loaded, err := chaindata.LoadFixture(path)
	require.NoError(t, err)
	src, err := loaded.Source()
	require.NoError(t, err)

	hashes, err := src.GetBlockHashes(ctx, 50, 52)
	require.NoError(t, err)
	assert.Equal(t, blocks[0].Hash(), hashes[0])
	assert.Equal(t, blocks[1].Hash(), hashes[1])

	w, err := src.GetTransactionWeight(ctx, 50, 2)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestTransactionGas(50, 2), w)
}
