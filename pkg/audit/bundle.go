package audit

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Layr-Labs/gasaudit-go/pkg/accumulator"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/trieproof"
)

// TrieEvidence is a compacted inclusion proof of one trie value.
type TrieEvidence struct {
	Root  common.Hash          `json:"root"`
	Key   hexutil.Bytes        `json:"key"`
	Value hexutil.Bytes        `json:"value"`
	Proof *trieproof.ProofPair `json:"proof"`
}

// Bundle is the evidence answering one challenge round.
type Bundle struct {
	SessionID string           `json:"sessionId"`
	Round     *challenge.Round `json:"round"`

	// WeightProof opens Round.Leaf against the session weight root.
	WeightProof []accumulator.WeightedNode `json:"weightProof"`

	// BlockProof opens the leaf's block hash against the session block root.
	BlockIndex uint64        `json:"blockIndex"`
	BlockHash  common.Hash   `json:"blockHash"`
	BlockProof []common.Hash `json:"blockProof"`
	Header     hexutil.Bytes `json:"header"`

	// Trie evidence is absent for block remainder leaves. PrevReceipt is
	// absent for the first transaction of a block.
	Transaction *TrieEvidence `json:"transaction,omitempty"`
	Receipt     *TrieEvidence `json:"receipt,omitempty"`
	PrevReceipt *TrieEvidence `json:"prevReceipt,omitempty"`
}
