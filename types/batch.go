package types

// Batch is an ordered slice of stream data together with the cursor it was
// fetched relative to. An empty batch means nothing new is available.
type Batch[D, C any] struct {
	Items []D
	// Positions holds the stream position of each item when the stream knows
	// them; it is either empty or the same length as Items.
	Positions []C
	// Cursor is the position the batch was fetched after
	Cursor *Cursor[C]
}

// NewBatch creates a batch without per-item positions
func NewBatch[D, C any](items []D, cursor *Cursor[C]) Batch[D, C] {
	return Batch[D, C]{Items: items, Cursor: cursor}
}

// EmptyBatch is the result of a fetch that found nothing new after cursor
func EmptyBatch[D, C any](cursor *Cursor[C]) Batch[D, C] {
	return Batch[D, C]{Cursor: cursor}
}

func (b Batch[D, C]) Len() int {
	return len(b.Items)
}

func (b Batch[D, C]) HasPositions() bool {
	return len(b.Positions) > 0 && len(b.Positions) == len(b.Items)
}

// After returns the items positioned strictly ahead of from. Batches without
// positions are returned whole since the items cannot be told apart.
func (b Batch[D, C]) After(from *Cursor[C]) Batch[D, C] {
	if from == nil || !b.HasPositions() {
		return b
	}

	for idx, position := range b.Positions {
		if !from.HasReached(position) {
			if idx == 0 {
				return b
			}
			return Batch[D, C]{
				Items:     b.Items[idx:],
				Positions: b.Positions[idx:],
				Cursor:    from,
			}
		}
	}
	return EmptyBatch[D](from)
}
