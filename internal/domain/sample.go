package domain

import "math/rand"

// SamplePolicy bounds a source to a reproducible random subset. A
// non-positive Size disables sampling.
type SamplePolicy struct {
	Size int   `json:"size"`
	Seed int64 `json:"seed"`
}

// Enabled reports whether the policy selects a subset.
func (p SamplePolicy) Enabled() bool {
	return p.Size > 0
}

// sampleIndexes picks min(k, n) of the indexes 0..n-1 using selection
// sampling, so the result is ascending and depends only on n, k and seed.
func sampleIndexes(n, k int, seed int64) []int {
	if k >= n {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // sampling, not security
	idx := make([]int, 0, k)
	for i := 0; i < n && len(idx) < k; i++ {
		remaining := n - i
		needed := k - len(idx)
		if rng.Intn(remaining) < needed {
			idx = append(idx, i)
		}
	}
	return idx
}

// Sample returns the policy's subset of items in input order. With the
// policy disabled or enough capacity it returns items unchanged.
func Sample[T any](items []T, p SamplePolicy) []T {
	if !p.Enabled() || len(items) <= p.Size {
		return items
	}
	idx := sampleIndexes(len(items), p.Size, p.Seed)
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

// SampleReadings pre-samples a large fact source before assembly.
func SampleReadings(readings []Reading, p SamplePolicy) []Reading {
	return Sample(readings, p)
}
