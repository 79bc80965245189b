package chaindata

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/rawdb"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/Layr-Labs/gasaudit-go/pkg/trieproof"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

type memoryBlock struct {
	header        *ethtypes.Header
	receipts      ethtypes.Receipts
	txProofs      []*TrieProof
	receiptProofs []*TrieProof
}

// MemorySource serves blocks held in memory. Trie proofs for every
// transaction and receipt are generated when a block is added.
type MemorySource struct {
	mu     sync.RWMutex
	blocks map[uint64]*memoryBlock
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		blocks: make(map[uint64]*memoryBlock),
	}
}

// AddBlock indexes a block and its receipts. The rebuilt transaction and
// receipt trie roots must match the header.
func (s *MemorySource) AddBlock(block *ethtypes.Block, receipts []*ethtypes.Receipt) error {
	txs := block.Transactions()
	if len(txs) != len(receipts) {
		return fmt.Errorf("block %d has %d transactions but %d receipts", block.NumberU64(), len(txs), len(receipts))
	}
	for i := 1; i < len(receipts); i++ {
		if receipts[i].CumulativeGasUsed < receipts[i-1].CumulativeGasUsed {
			return fmt.Errorf("block %d receipt %d: cumulative gas decreases", block.NumberU64(), i)
		}
	}

	header := block.Header()
	txProofs, err := proveList(ethtypes.Transactions(txs), header.TxHash)
	if err != nil {
		return fmt.Errorf("block %d transactions: %w", block.NumberU64(), err)
	}
	receiptProofs, err := proveList(ethtypes.Receipts(receipts), header.ReceiptHash)
	if err != nil {
		return fmt.Errorf("block %d receipts: %w", block.NumberU64(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[block.NumberU64()] = &memoryBlock{
		header:        header,
		receipts:      receipts,
		txProofs:      txProofs,
		receiptProofs: receiptProofs,
	}
	return nil
}

// proveList inserts every element of list into a fresh trie keyed by
// rlp(index) and proves each key.
func proveList(list ethtypes.DerivableList, want common.Hash) ([]*TrieProof, error) {
	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))

	values := make([][]byte, list.Len())
	keys := make([][]byte, list.Len())
	for i := 0; i < list.Len(); i++ {
		var buf bytes.Buffer
		list.EncodeIndex(i, &buf)
		keys[i] = rlp.AppendUint64(nil, uint64(i))
		values[i] = buf.Bytes()
		if err := tr.Update(keys[i], values[i]); err != nil {
			return nil, err
		}
	}

	root := tr.Hash()
	if root != want {
		return nil, fmt.Errorf("trie root %s does not match header root %s", root, want)
	}

	proofs := make([]*TrieProof, list.Len())
	for i := range proofs {
		var nodes trieproof.NodeList
		if err := tr.Prove(keys[i], &nodes); err != nil {
			return nil, err
		}
		encoded := make([]hexutil.Bytes, len(nodes))
		for j, n := range nodes {
			encoded[j] = n
		}
		proofs[i] = &TrieProof{Root: root, Key: keys[i], Value: values[i], Nodes: encoded}
	}
	return proofs, nil
}

func (s *MemorySource) block(number uint64) (*memoryBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[number]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}
	return b, nil
}

func (s *MemorySource) has(number uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[number]
	return ok
}

func (s *MemorySource) GetBlockHashes(ctx context.Context, from, to uint64) ([]common.Hash, error) {
	if to < from {
		return nil, fmt.Errorf("invalid block range [%d, %d)", from, to)
	}
	hashes := make([]common.Hash, 0, to-from)
	for n := from; n < to; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := s.block(n)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, b.header.Hash())
	}
	return hashes, nil
}

func (s *MemorySource) GetHeader(_ context.Context, number uint64) (*ethtypes.Header, error) {
	b, err := s.block(number)
	if err != nil {
		return nil, err
	}
	return ethtypes.CopyHeader(b.header), nil
}

func (s *MemorySource) GetTransactionCount(_ context.Context, block uint64) (int, error) {
	b, err := s.block(block)
	if err != nil {
		return 0, err
	}
	return len(b.receipts), nil
}

// GetTransactionWeight derives gas used from consecutive cumulative gas
// values, which is what a verifier can check from two receipt proofs.
func (s *MemorySource) GetTransactionWeight(_ context.Context, block uint64, txIndex int) (uint64, error) {
	b, err := s.block(block)
	if err != nil {
		return 0, err
	}
	if txIndex < 0 || txIndex >= len(b.receipts) {
		return 0, fmt.Errorf("%w: block %d index %d", ErrTransactionNotFound, block, txIndex)
	}
	used := b.receipts[txIndex].CumulativeGasUsed
	if txIndex > 0 {
		used -= b.receipts[txIndex-1].CumulativeGasUsed
	}
	return used, nil
}

func (s *MemorySource) GetBlockRemainder(_ context.Context, block uint64) (uint64, error) {
	b, err := s.block(block)
	if err != nil {
		return 0, err
	}
	if b.header.GasUsed > b.header.GasLimit {
		return 0, fmt.Errorf("block %d uses %d gas over a limit of %d", block, b.header.GasUsed, b.header.GasLimit)
	}
	return b.header.GasLimit - b.header.GasUsed, nil
}

func (s *MemorySource) GetRawTrieProof(_ context.Context, block uint64, txIndex int, kind types.TrieKind) (*TrieProof, error) {
	b, err := s.block(block)
	if err != nil {
		return nil, err
	}
	if txIndex < 0 || txIndex >= len(b.receipts) {
		return nil, fmt.Errorf("%w: block %d index %d", ErrTransactionNotFound, block, txIndex)
	}
	switch kind {
	case types.TrieKindTransaction:
		return b.txProofs[txIndex], nil
	case types.TrieKindReceipt:
		return b.receiptProofs[txIndex], nil
	default:
		return nil, fmt.Errorf("unknown trie kind %d", kind)
	}
}
