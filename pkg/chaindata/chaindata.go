// Package chaindata defines the collaborators the audit engine reads chain
// data from, and in-memory implementations backed by go-ethereum tries.
package chaindata

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

var (
	ErrBlockNotFound       = errors.New("block not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TrieProof is a raw inclusion proof for one key of a transaction or receipt
// trie. Nodes are RLP encoded, root first.
type TrieProof struct {
	Root  common.Hash     `json:"root"`
	Key   hexutil.Bytes   `json:"key"`
	Value hexutil.Bytes   `json:"value"`
	Nodes []hexutil.Bytes `json:"nodes"`
}

func (p *TrieProof) RawNodes() [][]byte {
	nodes := make([][]byte, len(p.Nodes))
	for i, n := range p.Nodes {
		nodes[i] = n
	}
	return nodes
}

// BlockSource supplies block hashes and headers for a contiguous range.
type BlockSource interface {
	// GetBlockHashes returns the hashes of blocks [from, to) in order.
	GetBlockHashes(ctx context.Context, from, to uint64) ([]common.Hash, error)
	GetHeader(ctx context.Context, number uint64) (*ethtypes.Header, error)
}

// TransactionSource supplies per-transaction weights and trie proofs.
type TransactionSource interface {
	GetTransactionCount(ctx context.Context, block uint64) (int, error)
	// GetTransactionWeight is the gas used by one transaction.
	GetTransactionWeight(ctx context.Context, block uint64, txIndex int) (uint64, error)
	// GetBlockRemainder is the gas limit left unused by a block.
	GetBlockRemainder(ctx context.Context, block uint64) (uint64, error)
	GetRawTrieProof(ctx context.Context, block uint64, txIndex int, kind types.TrieKind) (*TrieProof, error)
}

type Source interface {
	BlockSource
	TransactionSource
}
