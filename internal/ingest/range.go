package ingest

import "fmt"

// BlockRange is an inclusive span of block numbers.
type BlockRange struct {
	From uint64
	To   uint64
}

// Blocks returns how many blocks the span covers.
func (r BlockRange) Blocks() uint64 {
	return r.To - r.From + 1
}

// SplitRange cuts [from, to] into consecutive spans of at most batchSize
// blocks. The last span absorbs any remainder.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end %d precedes start %d", to, from)
	}

	total := to - from + 1
	spans := total / batchSize
	if total%batchSize != 0 {
		spans++
	}

	ranges := make([]BlockRange, 0, spans)
	for start := from; ; {
		end := to
		// start+batchSize-1 can wrap near the top of uint64 range.
		if step := start + batchSize - 1; step >= start && step < to {
			end = step
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
		start = end + 1
	}
}
