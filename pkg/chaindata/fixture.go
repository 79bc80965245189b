package chaindata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// FixtureBlock is one block in its consensus encodings.
type FixtureBlock struct {
	Header       hexutil.Bytes   `json:"header"`
	Transactions []hexutil.Bytes `json:"transactions"`
	Receipts     []hexutil.Bytes `json:"receipts"`
}

// Fixture is a JSON snapshot of a block range that can be replayed offline.
type Fixture struct {
	Blocks []FixtureBlock `json:"blocks"`
}

// NewFixture encodes blocks and their receipts. receipts[i] belongs to blocks[i].
func NewFixture(blocks []*ethtypes.Block, receipts [][]*ethtypes.Receipt) (*Fixture, error) {
	if len(blocks) != len(receipts) {
		return nil, fmt.Errorf("%d blocks but %d receipt lists", len(blocks), len(receipts))
	}
	f := &Fixture{Blocks: make([]FixtureBlock, len(blocks))}
	for i, block := range blocks {
		header, err := rlp.EncodeToBytes(block.Header())
		if err != nil {
			return nil, fmt.Errorf("block %d header: %w", block.NumberU64(), err)
		}
		fb := FixtureBlock{Header: header}
		for _, tx := range block.Transactions() {
			enc, err := tx.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("block %d transaction %s: %w", block.NumberU64(), tx.Hash(), err)
			}
			fb.Transactions = append(fb.Transactions, enc)
		}
		for j, r := range receipts[i] {
			enc, err := r.MarshalBinary()
			if err != nil {
				return nil, fmt.Errorf("block %d receipt %d: %w", block.NumberU64(), j, err)
			}
			fb.Receipts = append(fb.Receipts, enc)
		}
		f.Blocks[i] = fb
	}
	return f, nil
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

func (f *Fixture) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Source decodes every block into a MemorySource.
func (f *Fixture) Source() (*MemorySource, error) {
	src := NewMemorySource()
	for i, fb := range f.Blocks {
		var header ethtypes.Header
		if err := rlp.DecodeBytes(fb.Header, &header); err != nil {
			return nil, fmt.Errorf("fixture block %d header: %w", i, err)
		}

		txs := make([]*ethtypes.Transaction, len(fb.Transactions))
		for j, enc := range fb.Transactions {
			tx := new(ethtypes.Transaction)
			if err := tx.UnmarshalBinary(enc); err != nil {
				return nil, fmt.Errorf("fixture block %d transaction %d: %w", i, j, err)
			}
			txs[j] = tx
		}

		receipts := make([]*ethtypes.Receipt, len(fb.Receipts))
		for j, enc := range fb.Receipts {
			r := new(ethtypes.Receipt)
			if err := r.UnmarshalBinary(enc); err != nil {
				return nil, fmt.Errorf("fixture block %d receipt %d: %w", i, j, err)
			}
			receipts[j] = r
		}

		block := ethtypes.NewBlockWithHeader(&header).WithBody(ethtypes.Body{Transactions: txs})
		if err := src.AddBlock(block, receipts); err != nil {
			return nil, err
		}
	}
	return src, nil
}
