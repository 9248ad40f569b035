package service

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) on the same date intersect. Times are zero-padded HH:MM
// strings validated upstream, so lexicographic comparison is chronological.
//
// Touching intervals do not conflict: a slot ending at 10:00 is compatible
// with one starting at 10:00. Equal intervals always conflict. Zero-length
// intervals are rejected by validation before reaching this check.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && bStart < aEnd
}
