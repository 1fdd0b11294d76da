// Package segment plans the uniform time slices a decoded audio stream is
// transcribed in. The plan is pure and deterministic: recomputing it from the
// same duration and segment length yields an identical sequence, which is what
// makes resuming from a committed segment index safe.
package segment

import "math"

// Segment is a contiguous time-bounded slice of the decoded audio stream.
// Start and End are seconds from the beginning of the stream.
type Segment struct {
	Index int
	Start float64
	End   float64
}

// Duration returns the length of the segment in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Split divides a stream of the given duration into ordered fixed-length
// segments. The final segment may be shorter than segmentLength; an exact
// multiple leaves no zero-length tail. A stream shorter than one segment
// yields exactly one segment spanning the whole stream.
func Split(duration, segmentLength float64) []Segment {
	if segmentLength <= 0 || duration <= segmentLength {
		return []Segment{{Index: 0, Start: 0, End: math.Max(duration, 0)}}
	}

	count := int(math.Ceil(duration / segmentLength))
	// Guard against float fuzz on exact multiples producing an empty tail.
	if float64(count-1)*segmentLength >= duration {
		count--
	}

	segments := make([]Segment, count)
	for i := 0; i < count; i++ {
		start := float64(i) * segmentLength
		end := start + segmentLength
		if end > duration {
			end = duration
		}
		segments[i] = Segment{Index: i, Start: start, End: end}
	}
	return segments
}
