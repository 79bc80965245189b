package accumulator

import (
	"fmt"

	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// ExtractProof walks a finalized accumulator history from the leaf row to the
// row below the root. At every height the sibling is the neighbour of the
// current index (right when even, left when odd) and the index is halved
// before moving up. The returned proof is ordered leaf-to-root.
func ExtractProof[T any](history [][]T, leafIndex uint64) ([]T, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty history", types.ErrInconsistentHistory)
	}

	proof := make([]T, 0, len(history)-1)
	index := leafIndex
	for height := 0; height < len(history)-1; height++ {
		sibling := index + 1
		if index%2 == 1 {
			sibling = index - 1
		}
		if sibling >= uint64(len(history[height])) {
			return nil, fmt.Errorf("%w: no sibling %d at height %d (row has %d nodes)",
				types.ErrInconsistentHistory, sibling, height, len(history[height]))
		}
		proof = append(proof, history[height][sibling])
		index >>= 1
	}

	if index != 0 {
		return nil, fmt.Errorf("%w: leaf %d ends at index %d of the top row",
			types.ErrInconsistentHistory, leafIndex, index)
	}
	return proof, nil
}
