// Package audit commits to a block range and answers weighted sampling
// challenges against that commitment with bundles of membership and trie
// inclusion proofs.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/gasaudit-go/pkg/accumulator"
	"github.com/Layr-Labs/gasaudit-go/pkg/chaindata"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/config"
	"github.com/Layr-Labs/gasaudit-go/pkg/trieproof"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// ErrSessionMismatch is returned when a session restored from its record
// does not reproduce the recorded roots.
var ErrSessionMismatch = errors.New("restored session does not match its record")

type Auditor struct {
	source  chaindata.Source
	config  *config.AuditConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewAuditor(source chaindata.Source, cfg *config.AuditConfig, l *zap.Logger) *Auditor {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Concurrency
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Auditor{
		source:  source,
		config:  cfg,
		limiter: limiter,
		logger:  l,
	}
}

// Commit builds the block hash and weighted commitments for [from, to).
func (a *Auditor) Commit(ctx context.Context, from, to uint64) (*Session, error) {
	s := &Session{
		ID:               uuid.New().String(),
		FromBlock:        from,
		ToBlock:          to,
		IncludeRemainder: a.config.IncludeRemainder,
		CreatedAt:        time.Now().UTC(),
	}
	if err := a.build(ctx, s); err != nil {
		return nil, err
	}

	a.logger.Sugar().Infow("Committed audit session",
		"session", s.ID,
		"fromBlock", from,
		"toBlock", to,
		"leaves", s.LeafCount,
		"totalWeight", s.TotalWeight(),
		"blockRoot", s.BlockRoot.Hex(),
		"weightRoot", s.WeightRoot.Hash.Hex(),
	)
	return s, nil
}

// Restore rebuilds the in-memory state of a persisted session record and
// checks it against the recorded roots.
func (a *Auditor) Restore(ctx context.Context, record *Session) (*Session, error) {
	s := record.Record()
	if err := a.build(ctx, s); err != nil {
		return nil, err
	}
	if s.BlockRoot != record.BlockRoot || !s.WeightRoot.Equal(record.WeightRoot) || s.LeafCount != record.LeafCount {
		return nil, fmt.Errorf("%w: session %s", ErrSessionMismatch, record.ID)
	}
	a.logger.Sugar().Infow("Restored audit session", "session", s.ID, "leaves", s.LeafCount)
	return s, nil
}

func (a *Auditor) build(ctx context.Context, s *Session) error {
	if s.ToBlock <= s.FromBlock {
		return fmt.Errorf("%w: block range [%d, %d)", types.ErrEmptyInput, s.FromBlock, s.ToBlock)
	}

	hashes, err := fetch(ctx, a, "block hashes", func(ctx context.Context) ([]common.Hash, error) {
		return a.source.GetBlockHashes(ctx, s.FromBlock, s.ToBlock)
	})
	if err != nil {
		return err
	}
	if uint64(len(hashes)) != s.BlockCount() {
		return fmt.Errorf("source returned %d hashes for %d blocks", len(hashes), s.BlockCount())
	}
	blocks, err := accumulator.Commit(hashes)
	if err != nil {
		return err
	}

	leaves, err := a.collectLeaves(ctx, s.FromBlock, s.ToBlock, s.IncludeRemainder)
	if err != nil {
		return err
	}
	boundary := types.NewBoundaryKey(s.ToBlock)
	weights, err := accumulator.CommitWeighted(leaves, boundary)
	if err != nil {
		return err
	}
	sampler, err := challenge.NewSampler(leaves)
	if err != nil {
		return err
	}

	s.BlockRoot, _ = blocks.Root()
	s.WeightRoot, _ = weights.Root()
	s.Boundary = boundary
	s.LeafCount = weights.Len()
	s.blocks = blocks
	s.weights = weights
	s.sampler = sampler
	return nil
}

// collectLeaves fetches the weighted leaves of every block concurrently and
// returns them in position key order.
func (a *Auditor) collectLeaves(ctx context.Context, from, to uint64, includeRemainder bool) ([]types.WeightedLeaf, error) {
	perBlock := make([][]types.WeightedLeaf, to-from)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)
	for block := from; block < to; block++ {
		g.Go(func() error {
			leaves, err := a.blockLeaves(gctx, block, includeRemainder)
			if err != nil {
				return err
			}
			perBlock[block-from] = leaves
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var leaves []types.WeightedLeaf
	for _, bl := range perBlock {
		leaves = append(leaves, bl...)
	}
	return leaves, nil
}

func (a *Auditor) blockLeaves(ctx context.Context, block uint64, includeRemainder bool) ([]types.WeightedLeaf, error) {
	count, err := fetch(ctx, a, fmt.Sprintf("transaction count of block %d", block), func(ctx context.Context) (int, error) {
		return a.source.GetTransactionCount(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	leaves := make([]types.WeightedLeaf, 0, count+1)
	for i := 0; i < count; i++ {
		weight, err := fetch(ctx, a, fmt.Sprintf("weight of transaction %d in block %d", i, block), func(ctx context.Context) (uint64, error) {
			return a.source.GetTransactionWeight(ctx, block, i)
		})
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, types.WeightedLeaf{Key: types.NewPositionKey(block, uint64(i)), Weight: weight})
	}

	if includeRemainder {
		remainder, err := fetch(ctx, a, fmt.Sprintf("remainder of block %d", block), func(ctx context.Context) (uint64, error) {
			return a.source.GetBlockRemainder(ctx, block)
		})
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, types.WeightedLeaf{Key: types.NewBlockRemainderKey(block), Weight: remainder})
	}
	return leaves, nil
}

// Challenge derives rounds from the session weight root and assembles one
// bundle per round, ordered by nonce.
func (a *Auditor) Challenge(ctx context.Context, s *Session, rounds int) ([]*Bundle, error) {
	if !s.Loaded() {
		return nil, fmt.Errorf("session %s has no commitment state, restore it first", s.ID)
	}

	derived, err := challenge.DeriveRounds(ctx, s.WeightRoot.Hash, s.sampler, rounds)
	if err != nil {
		return nil, err
	}

	bundles := make([]*Bundle, len(derived))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)
	for i, round := range derived {
		g.Go(func() error {
			b, err := a.buildBundle(gctx, s, round)
			if err != nil {
				return fmt.Errorf("round %d: %w", round.Nonce, err)
			}
			bundles[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Sugar().Infow("Answered audit challenges",
		"session", s.ID,
		"rounds", len(bundles),
		"alpha", challenge.ConfidenceBound(len(bundles)).Float(),
	)
	return bundles, nil
}

func (a *Auditor) buildBundle(ctx context.Context, s *Session, round *challenge.Round) (*Bundle, error) {
	weightProof, err := s.weights.GenerateProof(uint64(round.LeafIndex))
	if err != nil {
		return nil, err
	}

	block := round.Leaf.Key.BlockNumber()
	if block < s.FromBlock || block >= s.ToBlock {
		return nil, fmt.Errorf("leaf %s outside of block range", round.Leaf.Key)
	}
	blockIndex := block - s.FromBlock
	blockProof, err := s.blocks.GenerateProof(blockIndex)
	if err != nil {
		return nil, err
	}

	header, err := fetch(ctx, a, fmt.Sprintf("header of block %d", block), func(ctx context.Context) (*ethtypes.Header, error) {
		return a.source.GetHeader(ctx, block)
	})
	if err != nil {
		return nil, err
	}
	if header.Hash() != blockProof.Leaf {
		return nil, fmt.Errorf("header of block %d hashes to %s, committed %s", block, header.Hash(), blockProof.Leaf)
	}
	encodedHeader, err := rlp.EncodeToBytes(header)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		SessionID:   s.ID,
		Round:       round,
		WeightProof: weightProof,
		BlockIndex:  blockIndex,
		BlockHash:   blockProof.Leaf,
		BlockProof:  blockProof.Proof,
		Header:      encodedHeader,
	}

	txIndex, ok := round.Leaf.Key.TxIndex()
	if !ok {
		return b, nil
	}
	if b.Transaction, err = a.evidence(ctx, block, int(txIndex), types.TrieKindTransaction); err != nil {
		return nil, err
	}
	if b.Receipt, err = a.evidence(ctx, block, int(txIndex), types.TrieKindReceipt); err != nil {
		return nil, err
	}
	if txIndex > 0 {
		if b.PrevReceipt, err = a.evidence(ctx, block, int(txIndex)-1, types.TrieKindReceipt); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (a *Auditor) evidence(ctx context.Context, block uint64, txIndex int, kind types.TrieKind) (*TrieEvidence, error) {
	name := fmt.Sprintf("%s proof %d in block %d", kind, txIndex, block)
	proof, err := fetch(ctx, a, name, func(ctx context.Context) (*chaindata.TrieProof, error) {
		return a.source.GetRawTrieProof(ctx, block, txIndex, kind)
	})
	if err != nil {
		return nil, err
	}
	pair, err := trieproof.Compact(proof.RawNodes(), proof.Key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &TrieEvidence{
		Root:  proof.Root,
		Key:   common.CopyBytes(proof.Key),
		Value: common.CopyBytes(proof.Value),
		Proof: pair,
	}, nil
}
