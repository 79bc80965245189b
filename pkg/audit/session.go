package audit

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/gasaudit-go/pkg/accumulator"
	"github.com/Layr-Labs/gasaudit-go/pkg/challenge"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// Session is the public record of a commitment over blocks [FromBlock, ToBlock).
// The exported fields are what a verifier needs; the unexported state is the
// finalized accumulators used to answer challenges and is only present on
// sessions produced by Commit or Restore.
type Session struct {
	ID               string    `json:"id"`
	FromBlock        uint64    `json:"fromBlock"`
	ToBlock          uint64    `json:"toBlock"`
	IncludeRemainder bool      `json:"includeRemainder"`
	CreatedAt        time.Time `json:"createdAt"`

	BlockRoot  common.Hash              `json:"blockRoot"`
	WeightRoot accumulator.WeightedNode `json:"weightRoot"`
	Boundary   types.PositionKey        `json:"boundary"`
	LeafCount  uint64                   `json:"leafCount"`

	blocks  *accumulator.Accumulator
	weights *accumulator.WeightedAccumulator
	sampler *challenge.Sampler
}

// TotalWeight is the claimed aggregate weight of the range.
func (s *Session) TotalWeight() uint64 {
	return s.WeightRoot.Weight
}

func (s *Session) BlockCount() uint64 {
	return s.ToBlock - s.FromBlock
}

// Loaded reports whether the session can answer challenges.
func (s *Session) Loaded() bool {
	return s.blocks != nil && s.weights != nil && s.sampler != nil
}

// Record returns a copy carrying only the public fields.
func (s *Session) Record() *Session {
	return &Session{
		ID:               s.ID,
		FromBlock:        s.FromBlock,
		ToBlock:          s.ToBlock,
		IncludeRemainder: s.IncludeRemainder,
		CreatedAt:        s.CreatedAt,
		BlockRoot:        s.BlockRoot,
		WeightRoot:       s.WeightRoot,
		Boundary:         s.Boundary,
		LeafCount:        s.LeafCount,
	}
}
