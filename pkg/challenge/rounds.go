package challenge

import (
	"context"
	"fmt"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// Round is one resolved challenge against a weighted commitment.
type Round struct {
	Nonce     uint64             `json:"nonce"`
	Point     uint64             `json:"point"`
	LeafIndex int                `json:"leafIndex"`
	Prefix    uint64             `json:"prefix"`
	Leaf      types.WeightedLeaf `json:"leaf"`
	Alpha     Alpha              `json:"alpha"`
}

// DeriveRounds derives and resolves rounds with nonces 0..count-1. Rounds are
// independent so they are computed concurrently; the result is ordered by
// nonce.
func DeriveRounds(ctx context.Context, root common.Hash, sampler *Sampler, count int) ([]*Round, error) {
	if count < 0 || count > MaxRounds {
		return nil, fmt.Errorf("round count %d outside [0, %d]", count, MaxRounds)
	}
	total := sampler.TotalWeight()
	if total == 0 {
		return nil, types.ErrZeroTotalWeight
	}

	rounds := make([]*Round, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < count; i++ {
		nonce := uint64(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			round, err := deriveRound(root, sampler, total, nonce)
			if err != nil {
				return fmt.Errorf("round %d: %w", nonce, err)
			}
			rounds[nonce] = round
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rounds, nil
}

func deriveRound(root common.Hash, sampler *Sampler, total, nonce uint64) (*Round, error) {
	point, err := Derive(root, total, nonce)
	if err != nil {
		return nil, err
	}
	index, prefix, err := sampler.Resolve(point)
	if err != nil {
		return nil, err
	}
	return &Round{
		Nonce:     nonce,
		Point:     point,
		LeafIndex: index,
		Prefix:    prefix,
		Leaf:      sampler.Leaf(index),
		Alpha:     ConfidenceBound(int(nonce)),
	}, nil
}
