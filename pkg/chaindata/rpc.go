package chaindata

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// BlockReader is the part of ethclient.Client an RPCSource needs.
type BlockReader interface {
	BlockByNumber(ctx context.Context, number *big.Int) (*ethtypes.Block, error)
	BlockReceipts(ctx context.Context, blockNrOrHash rpc.BlockNumberOrHash) ([]*ethtypes.Receipt, error)
}

// RPCSource loads blocks and receipts from a node on first use and serves
// them, with their trie proofs, from an in-memory cache afterwards.
type RPCSource struct {
	reader BlockReader
	cache  *MemorySource
	loads  singleflight.Group
	closer func()
	logger *zap.Logger
}

func NewRPCSource(reader BlockReader, logger *zap.Logger) *RPCSource {
	return &RPCSource{
		reader: reader,
		cache:  NewMemorySource(),
		logger: logger,
	}
}

// DialRPCSource connects to the JSON-RPC endpoint at url.
func DialRPCSource(ctx context.Context, url string, logger *zap.Logger) (*RPCSource, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	s := NewRPCSource(client, logger)
	s.closer = client.Close
	logger.Sugar().Infow("Connected to RPC endpoint", "url", url)
	return s, nil
}

// Close releases the underlying client when the source dialed it.
func (s *RPCSource) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func (s *RPCSource) fetchBlock(ctx context.Context, number uint64) (*ethtypes.Block, []*ethtypes.Receipt, error) {
	block, err := s.reader.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch block %d: %w", number, err)
	}
	receipts, err := s.reader.BlockReceipts(ctx, rpc.BlockNumberOrHashWithHash(block.Hash(), false))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch receipts of block %d: %w", number, err)
	}
	return block, receipts, nil
}

// load makes sure block number is cached. Concurrent loads of the same block
// share one fetch.
func (s *RPCSource) load(ctx context.Context, number uint64) error {
	if s.cache.has(number) {
		return nil
	}
	_, err, _ := s.loads.Do(strconv.FormatUint(number, 10), func() (any, error) {
		if s.cache.has(number) {
			return nil, nil
		}
		block, receipts, err := s.fetchBlock(ctx, number)
		if err != nil {
			return nil, err
		}
		if err := s.cache.AddBlock(block, receipts); err != nil {
			return nil, err
		}
		s.logger.Sugar().Debugw("Loaded block", "number", number, "transactions", len(receipts))
		return nil, nil
	})
	return err
}

func (s *RPCSource) GetBlockHashes(ctx context.Context, from, to uint64) ([]common.Hash, error) {
	for n := from; n < to; n++ {
		if err := s.load(ctx, n); err != nil {
			return nil, err
		}
	}
	return s.cache.GetBlockHashes(ctx, from, to)
}

func (s *RPCSource) GetHeader(ctx context.Context, number uint64) (*ethtypes.Header, error) {
	if err := s.load(ctx, number); err != nil {
		return nil, err
	}
	return s.cache.GetHeader(ctx, number)
}

func (s *RPCSource) GetTransactionCount(ctx context.Context, block uint64) (int, error) {
	if err := s.load(ctx, block); err != nil {
		return 0, err
	}
	return s.cache.GetTransactionCount(ctx, block)
}

func (s *RPCSource) GetTransactionWeight(ctx context.Context, block uint64, txIndex int) (uint64, error) {
	if err := s.load(ctx, block); err != nil {
		return 0, err
	}
	return s.cache.GetTransactionWeight(ctx, block, txIndex)
}

func (s *RPCSource) GetBlockRemainder(ctx context.Context, block uint64) (uint64, error) {
	if err := s.load(ctx, block); err != nil {
		return 0, err
	}
	return s.cache.GetBlockRemainder(ctx, block)
}

func (s *RPCSource) GetRawTrieProof(ctx context.Context, block uint64, txIndex int, kind types.TrieKind) (*TrieProof, error) {
	if err := s.load(ctx, block); err != nil {
		return nil, err
	}
	return s.cache.GetRawTrieProof(ctx, block, txIndex, kind)
}

// Snapshot fetches [from, to) into a fixture that can be replayed offline.
func (s *RPCSource) Snapshot(ctx context.Context, from, to uint64) (*Fixture, error) {
	if to <= from {
		return nil, fmt.Errorf("%w: block range [%d, %d)", types.ErrEmptyInput, from, to)
	}
	blocks := make([]*ethtypes.Block, 0, to-from)
	receipts := make([][]*ethtypes.Receipt, 0, to-from)
	for n := from; n < to; n++ {
		block, blockReceipts, err := s.fetchBlock(ctx, n)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
		receipts = append(receipts, blockReceipts)
	}
	return NewFixture(blocks, receipts)
}
