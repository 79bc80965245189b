package accumulator

// slot is an optional peak at a given height.
type slot[T any] struct {
	value T
	ok    bool
}

// stack is the binary-counter carry engine shared by both accumulator
// variants. peaks[h] holds the pending subtree of height h, if any, and
// history[h] records every commitment that ever arrived at height h in
// arrival order, which is exactly the left-to-right order of that level.
type stack[T any] struct {
	peaks   []slot[T]
	history [][]T
	last    int
	merge   func(height int, resident, incoming T) T
}

// bubbleUp places c at height target, merging with resident peaks until it
// reaches a vacant height. It returns the height where c came to rest.
func (s *stack[T]) bubbleUp(target int, c T) int {
	for {
		if target == len(s.peaks) {
			s.peaks = append(s.peaks, slot[T]{value: c, ok: true})
			s.history = append(s.history, []T{c})
			return target
		}
		if !s.peaks[target].ok {
			s.peaks[target] = slot[T]{value: c, ok: true}
			s.history[target] = append(s.history[target], c)
			return target
		}
		s.history[target] = append(s.history[target], c)
		c = s.merge(target, s.peaks[target].value, c)
		s.peaks[target] = slot[T]{}
		target++
	}
}

func (s *stack[T]) push(c T) {
	s.last = s.bubbleUp(0, c)
}

// pad merges padding into the lowest pending peak until a single peak is
// left at the top height, then returns it.
func (s *stack[T]) pad(padding T) T {
	for s.last != len(s.peaks)-1 {
		s.last = s.bubbleUp(s.last, padding)
	}
	return s.peaks[s.last].value
}

func (s *stack[T]) occupied() []int {
	heights := make([]int, 0, len(s.peaks))
	for h, p := range s.peaks {
		if p.ok {
			heights = append(heights, h)
		}
	}
	return heights
}
