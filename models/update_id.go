package models

import "strconv"

// CompareUpdateIDs orders two server update ids. The server issues decimal
// strings, so both sides are compared numerically when they parse as
// integers; otherwise the comparison falls back to lexicographic order.
// An empty id sorts before any non-empty id. Returns -1, 0 or 1.
func CompareUpdateIDs(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}

	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}

	if a < b {
		return -1
	}
	return 1
}

// MaxUpdateID returns the larger of two update ids under CompareUpdateIDs.
func MaxUpdateID(a, b string) string {
	if CompareUpdateIDs(a, b) >= 0 {
		return a
	}
	return b
}
