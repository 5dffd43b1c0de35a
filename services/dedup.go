package services

import (
	"strings"
	"time"
)

// dropExactDuplicates keeps the first record for each (product, text) pair.
func dropExactDuplicates(in []*row) []*row {
	seen := make(map[[2]string]struct{}, len(in))
	out := make([]*row, 0, len(in))
	for _, w := range in {
		key := [2]string{w.ProductName, w.ReviewTextUnified}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}

// keepLatestPerReviewer collapses several reviews of one product by the same
// reviewer into the most recent one. Names are compared after trimming
// surrounding whitespace. Undated reviews rank as oldest and ties keep the
// earliest record. Records without a reviewer name are untouched.
func keepLatestPerReviewer(in []*row) []*row {
	winners := make(map[[2]string]int)
	for i, w := range in {
		key, ok := reviewerKey(w)
		if !ok {
			continue
		}
		best, seen := winners[key]
		if !seen || newer(w.DateUnified, in[best].DateUnified) {
			winners[key] = i
		}
	}

	out := make([]*row, 0, len(in))
	for i, w := range in {
		if key, ok := reviewerKey(w); ok && winners[key] != i {
			continue
		}
		out = append(out, w)
	}
	return out
}

func reviewerKey(w *row) ([2]string, bool) {
	name := strings.TrimSpace(w.ReviewerName)
	if name == "" {
		return [2]string{}, false
	}
	return [2]string{w.ProductName, name}, true
}

func newer(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
