package classify

// ChunkCount is the number of parallel model calls per classification.
const ChunkCount = 4

// Span is a half-open range [Start, End) of dataset indices.
type Span struct {
	Start int
	End   int
}

// Len returns the number of items in the span.
func (s Span) Len() int { return s.End - s.Start }

// Partition splits n items into exactly parts contiguous spans of at most
// ceil(n/parts) items each. Trailing spans are empty when n is small.
func Partition(n, parts int) []Span {
	if parts <= 0 {
		parts = 1
	}
	size := (n + parts - 1) / parts
	spans := make([]Span, parts)
	for i := range spans {
		start := min(i*size, n)
		end := min(start+size, n)
		spans[i] = Span{Start: start, End: end}
	}
	return spans
}
