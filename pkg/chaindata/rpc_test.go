package chaindata_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/gasaudit-go/pkg/chaindata"
	"github.com/Layr-Labs/gasaudit-go/pkg/logger"
	"github.com/Layr-Labs/gasaudit-go/pkg/testutil"
	"github.com/Layr-Labs/gasaudit-go/pkg/trieproof"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

type fakeReader struct {
	blocks       map[uint64]*ethtypes.Block
	receipts     map[string][]*ethtypes.Receipt
	blockCalls   atomic.Int32
	receiptCalls atomic.Int32
	failReceipts bool
}

func newFakeReader(t *testing.T, start uint64, txCounts []int) *fakeReader {
	blocks, receipts := testutil.CreateTestChain(t, start, txCounts)
	r := &fakeReader{
		blocks:   make(map[uint64]*ethtypes.Block),
		receipts: make(map[string][]*ethtypes.Receipt),
	}
	for i, b := range blocks {
		r.blocks[b.NumberU64()] = b
		r.receipts[b.Hash().Hex()] = receipts[i]
	}
	return r
}

func (r *fakeReader) BlockByNumber(_ context.Context, number *big.Int) (*ethtypes.Block, error) {
	r.blockCalls.Add(1)
	b, ok := r.blocks[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b, nil
}

func (r *fakeReader) BlockReceipts(_ context.Context, blockNrOrHash rpc.BlockNumberOrHash) ([]*ethtypes.Receipt, error) {
	r.receiptCalls.Add(1)
	if r.failReceipts {
		return nil, errors.New("connection reset")
	}
	hash, ok := blockNrOrHash.Hash()
	if !ok {
		return nil, errors.New("receipts requested by number")
	}
	return r.receipts[hash.Hex()], nil
}

func TestRPCSourceLoadsOnce(t *testing.T) {
	ctx := context.Background()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	reader := newFakeReader(t, 200, []int{3, 0, 2})
	src := chaindata.NewRPCSource(reader, l)

	hashes, err := src.GetBlockHashes(ctx, 200, 203)
	require.NoError(t, err)
	require.Len(t, hashes, 3)
	for i, h := range hashes {
		assert.Equal(t, reader.blocks[uint64(200+i)].Hash(), h)
	}

	w, err := src.GetTransactionWeight(ctx, 200, 1)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestTransactionGas(200, 1), w)

	count, err := src.GetTransactionCount(ctx, 201)
	require.NoError(t, err)
	assert.Zero(t, count)

	rem, err := src.GetBlockRemainder(ctx, 201)
	require.NoError(t, err)
	assert.Equal(t, uint64(testutil.TestGasLimit), rem)

	assert.Equal(t, int32(3), reader.blockCalls.Load())
	assert.Equal(t, int32(3), reader.receiptCalls.Load())
}

func TestRPCSourceConcurrentLoads(t *testing.T) {
	ctx := context.Background()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	reader := newFakeReader(t, 10, []int{4})
	src := chaindata.NewRPCSource(reader, l)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proof, err := src.GetRawTrieProof(ctx, 10, i%4, types.TrieKindReceipt)
			if !assert.NoError(t, err) {
				return
			}
			pair, err := trieproof.Compact(proof.RawNodes(), proof.Key)
			if assert.NoError(t, err) {
				assert.NoError(t, trieproof.Verify(proof.Root, proof.Key, proof.Value, pair))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), reader.blockCalls.Load())
}

func TestRPCSourceErrors(t *testing.T) {
	ctx := context.Background()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	reader := newFakeReader(t, 10, []int{1})
	src := chaindata.NewRPCSource(reader, l)

	_, err = src.GetHeader(ctx, 11)
	assert.ErrorIs(t, err, chaindata.ErrBlockNotFound)

	reader.failReceipts = true
	_, err = src.GetHeader(ctx, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, chaindata.ErrBlockNotFound)

	// A failed load is not cached.
	reader.failReceipts = false
	header, err := src.GetHeader(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, reader.blocks[10].Hash(), header.Hash())
}

func TestRPCSourceSnapshot(t *testing.T) {
	ctx := context.Background()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	reader := newFakeReader(t, 30, []int{2, 1})
	src := chaindata.NewRPCSource(reader, l)

	fixture, err := src.Snapshot(ctx, 30, 32)
	require.NoError(t, err)
	require.Len(t, fixture.Blocks, 2)

	replay, err := fixture.Source()
	require.NoError(t, err)
	hashes, err := replay.GetBlockHashes(ctx, 30, 32)
	require.NoError(t, err)
	assert.Equal(t, reader.blocks[30].Hash(), hashes[0])
	assert.Equal(t, reader.blocks[31].Hash(), hashes[1])

	_, err = src.Snapshot(ctx, 32, 32)
	assert.ErrorIs(t, err, types.ErrEmptyInput)
	_, err = src.Snapshot(ctx, 30, 40)
	assert.ErrorIs(t, err, chaindata.ErrBlockNotFound)
}
