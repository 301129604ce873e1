// Package numutil holds small integer helpers shared by the request compilers.
package numutil

import "math"

// ClampIntToInt32 converts n to int32, clamping to the int32 range.
func ClampIntToInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int32(n)
}

// PositiveInt32 returns n as a clamped int32 when n > 0, otherwise nil.
func PositiveInt32(n int) *int32 {
	if n <= 0 {
		return nil
	}
	v := ClampIntToInt32(n)
	return &v
}

// Span is a half-open [Start, End) range over a slice.
type Span struct {
	Start int
	End   int
}

// Spans splits a slice of length n into consecutive spans of at most size elements.
// A non-positive size yields a single span covering everything.
func Spans(n, size int) []Span {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []Span{{Start: 0, End: n}}
	}
	spans := make([]Span, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}
