package testutil

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
)

// TestGasLimit is the gas limit of every block created by CreateTestChain
const TestGasLimit = 30_000_000

// CreateTestChain creates consecutive blocks starting at start, where block i
// carries txCounts[i] transactions. Blocks are linked by parent hash and their
// transaction and receipt roots are real trie roots.
func CreateTestChain(t *testing.T, start uint64, txCounts []int) ([]*ethtypes.Block, [][]*ethtypes.Receipt) {
	t.Helper()

	blocks := make([]*ethtypes.Block, len(txCounts))
	receipts := make([][]*ethtypes.Receipt, len(txCounts))
	parent := common.Hash{}
	for i, count := range txCounts {
		number := start + uint64(i)
		txs, blockReceipts := CreateTestTransactions(number, count)

		var gasUsed uint64
		if count > 0 {
			gasUsed = blockReceipts[count-1].CumulativeGasUsed
		}
		header := &ethtypes.Header{
			ParentHash: parent,
			Number:     new(big.Int).SetUint64(number),
			GasLimit:   TestGasLimit,
			GasUsed:    gasUsed,
			Time:       1_700_000_000 + number*12,
			Difficulty: big.NewInt(1),
		}
		block := ethtypes.NewBlock(header, &ethtypes.Body{Transactions: txs}, blockReceipts, trie.NewStackTrie(nil))

		blocks[i] = block
		receipts[i] = blockReceipts
		parent = block.Hash()
	}
	return blocks, receipts
}

// CreateTestTransactions creates count legacy transactions and matching
// receipts with deterministic, distinct gas usage.
func CreateTestTransactions(block uint64, count int) ([]*ethtypes.Transaction, []*ethtypes.Receipt) {
	txs := make([]*ethtypes.Transaction, count)
	receipts := make([]*ethtypes.Receipt, count)
	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")

	var cumulative uint64
	for i := 0; i < count; i++ {
		data := make([]byte, 32)
		_, _ = rand.Read(data)
		txs[i] = ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    uint64(i),
			GasPrice: big.NewInt(1_000_000_000),
			Gas:      100_000,
			To:       &to,
			Value:    big.NewInt(1),
			Data:     data,
			V:        big.NewInt(27),
			R:        big.NewInt(1),
			S:        big.NewInt(1),
		})

		cumulative += TestTransactionGas(block, i)
		receipts[i] = &ethtypes.Receipt{
			Type:              ethtypes.LegacyTxType,
			Status:            ethtypes.ReceiptStatusSuccessful,
			CumulativeGasUsed: cumulative,
			Logs:              []*ethtypes.Log{},
			TxHash:            txs[i].Hash(),
			GasUsed:           TestTransactionGas(block, i),
			TransactionIndex:  uint(i),
		}
	}
	return txs, receipts
}

// TestTransactionGas is the gas used by transaction txIndex of a test block.
func TestTransactionGas(block uint64, txIndex int) uint64 {
	return 21_000 + uint64(txIndex+1)*1_000*(block%3+1)
}
