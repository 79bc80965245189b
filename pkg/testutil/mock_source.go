package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Layr-Labs/gasaudit-go/pkg/chaindata"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// ErrInjected is returned by MockSource for every injected failure
var ErrInjected = errors.New("injected source failure")

// MockSource wraps a chaindata.Source and fails the first N trie proof
// fetches, to exercise retry handling without a real node
type MockSource struct {
	chaindata.Source

	mu           sync.Mutex
	failuresLeft int
	proofCalls   int
}

// NewMockSource creates a mock source that fails the first failures proof fetches
func NewMockSource(inner chaindata.Source, failures int) *MockSource {
	return &MockSource{
		Source:       inner,
		failuresLeft: failures,
	}
}

func (m *MockSource) GetRawTrieProof(ctx context.Context, block uint64, txIndex int, kind types.TrieKind) (*chaindata.TrieProof, error) {
	m.mu.Lock()
	m.proofCalls++
	if m.failuresLeft > 0 {
		m.failuresLeft--
		m.mu.Unlock()
		return nil, ErrInjected
	}
	m.mu.Unlock()
	return m.Source.GetRawTrieProof(ctx, block, txIndex, kind)
}

// GetBlockHashes honours context cancellation before delegating
func (m *MockSource) GetBlockHashes(ctx context.Context, from, to uint64) ([]common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Source.GetBlockHashes(ctx, from, to)
}

func (m *MockSource) GetHeader(ctx context.Context, number uint64) (*ethtypes.Header, error) {
	return m.Source.GetHeader(ctx, number)
}

// ProofCalls returns how many proof fetches were attempted
func (m *MockSource) ProofCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.proofCalls
}
