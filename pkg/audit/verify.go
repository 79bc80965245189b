package audit

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/Layr-Labs/gasaudit-go/pkg/accumulator"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/trieproof"
)

var ErrInvalidBundle = errors.New("invalid audit bundle")

func invalid(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidBundle, format, args...)
}

// VerifyBundles checks a complete answer to a session's challenges. Bundle i
// must answer the round derived from nonce i, so every round counted toward
// the confidence bound is a distinct challenge.
func VerifyBundles(s *Session, bundles []*Bundle) error {
	if len(bundles) == 0 {
		return invalid("no bundles")
	}
	if len(bundles) > challenge.MaxRounds {
		return invalid("%d bundles exceed the limit of %d rounds", len(bundles), challenge.MaxRounds)
	}
	for i, b := range bundles {
		if b == nil || b.Round == nil {
			return invalid("bundle %d has no round", i)
		}
		if b.Round.Nonce != uint64(i) {
			return invalid("bundle %d answers nonce %d", i, b.Round.Nonce)
		}
	}
	for _, b := range bundles {
		if err := VerifyBundle(s, b); err != nil {
			return errors.Wrapf(err, "round %d", b.Round.Nonce)
		}
	}
	return nil
}

// VerifyBundle checks a bundle against the public fields of its session. It
// needs no chain access: every claim is tied to the session roots or to the
// block header carried in the bundle.
func VerifyBundle(s *Session, b *Bundle) error {
	if b.SessionID != s.ID {
		return invalid("bundle for session %s checked against %s", b.SessionID, s.ID)
	}
	round := b.Round
	if round == nil {
		return invalid("missing round")
	}
	if round.Nonce >= challenge.MaxRounds {
		return invalid("nonce %d beyond the round limit %d", round.Nonce, challenge.MaxRounds)
	}

	point, err := challenge.Derive(s.WeightRoot.Hash, s.TotalWeight(), round.Nonce)
	if err != nil {
		return err
	}
	if point != round.Point {
		return invalid("round %d point %d, derived %d", round.Nonce, round.Point, point)
	}
	if round.Alpha != challenge.ConfidenceBound(int(round.Nonce)) {
		return invalid("round %d claims alpha %s", round.Nonce, round.Alpha)
	}

	prefix, err := accumulator.VerifyWeightedProof(s.WeightRoot, round.Leaf, uint64(round.LeafIndex), b.WeightProof)
	if err != nil {
		return errors.Wrapf(ErrInvalidBundle, "weight proof: %v", err)
	}
	if prefix != round.Prefix || !challenge.VerifyPosition(prefix, round.Leaf.Weight, point) {
		return invalid("leaf %d with prefix %d does not cover point %d", round.LeafIndex, prefix, point)
	}

	block := round.Leaf.Key.BlockNumber()
	if block < s.FromBlock || block >= s.ToBlock || b.BlockIndex != block-s.FromBlock {
		return invalid("block %d at index %d outside of session range", block, b.BlockIndex)
	}
	if err := accumulator.VerifyProof(s.BlockRoot, b.BlockHash, b.BlockIndex, b.BlockProof); err != nil {
		return errors.Wrapf(ErrInvalidBundle, "block proof: %v", err)
	}

	var header ethtypes.Header
	if err := rlp.DecodeBytes(b.Header, &header); err != nil {
		return errors.Wrapf(ErrInvalidBundle, "header: %v", err)
	}
	if header.Hash() != b.BlockHash || header.Number == nil || header.Number.Uint64() != block {
		return invalid("header does not match block %d", block)
	}

	txIndex, ok := round.Leaf.Key.TxIndex()
	if !ok {
		if b.Transaction != nil || b.Receipt != nil || b.PrevReceipt != nil {
			return invalid("block remainder leaf carries trie evidence")
		}
		if header.GasUsed > header.GasLimit || header.GasLimit-header.GasUsed != round.Leaf.Weight {
			return invalid("block %d remainder is not %d", block, round.Leaf.Weight)
		}
		return nil
	}

	if err := verifyEvidence(b.Transaction, header.TxHash, txIndex); err != nil {
		return errors.Wrap(err, "transaction")
	}
	if err := verifyEvidence(b.Receipt, header.ReceiptHash, txIndex); err != nil {
		return errors.Wrap(err, "receipt")
	}
	used, err := cumulativeGas(b.Receipt)
	if err != nil {
		return err
	}
	if txIndex > 0 {
		if err := verifyEvidence(b.PrevReceipt, header.ReceiptHash, txIndex-1); err != nil {
			return errors.Wrap(err, "previous receipt")
		}
		prev, err := cumulativeGas(b.PrevReceipt)
		if err != nil {
			return err
		}
		if prev > used {
			return invalid("cumulative gas decreases at transaction %d", txIndex)
		}
		used -= prev
	} else if b.PrevReceipt != nil {
		return invalid("first transaction carries a previous receipt")
	}
	if used != round.Leaf.Weight {
		return invalid("transaction %d used %d gas, leaf claims %d", txIndex, used, round.Leaf.Weight)
	}
	return nil
}

func verifyEvidence(e *TrieEvidence, root common.Hash, txIndex uint64) error {
	if e == nil {
		return invalid("missing trie evidence")
	}
	if e.Root != root {
		return invalid("trie root %s, header has %s", e.Root, root)
	}
	if !bytes.Equal(e.Key, rlp.AppendUint64(nil, txIndex)) {
		return invalid("trie key %x is not index %d", []byte(e.Key), txIndex)
	}
	if err := trieproof.Verify(root, e.Key, e.Value, e.Proof); err != nil {
		return errors.Wrapf(ErrInvalidBundle, "trie proof: %v", err)
	}
	return nil
}

func cumulativeGas(e *TrieEvidence) (uint64, error) {
	var receipt ethtypes.Receipt
	if err := receipt.UnmarshalBinary(e.Value); err != nil {
		return 0, errors.Wrapf(ErrInvalidBundle, "receipt: %v", err)
	}
	return receipt.CumulativeGasUsed, nil
}
