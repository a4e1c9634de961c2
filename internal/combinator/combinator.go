// Package combinator enumerates cartesian products lazily.
//
// The attack search extends every frontier position of a tree at once, so
// the number of combinations grows as the product of per-position choices.
// Any walks them one at a time with a single reused slice and stops at the
// first combination the callback accepts.
package combinator

// Any calls fn once per element of the cartesian product of options, in
// odometer order with the last position varying fastest, and returns true as
// soon as fn does. A position with no options contributes placeholder.
// The slice passed to fn is reused between calls; fn must copy it to retain
// it.
func Any[T any](options [][]T, placeholder T, fn func(combo []T) bool) bool {
	k := len(options)
	if k == 0 {
		return fn(nil)
	}

	sizes := make([]int, k)
	for i, opts := range options {
		sizes[i] = max(len(opts), 1)
	}

	idx := make([]int, k)
	combo := make([]T, k)
	for i := range combo {
		combo[i] = pick(options[i], 0, placeholder)
	}

	for {
		if fn(combo) {
			return true
		}

		// Advance the odometer.
		i := k - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < sizes[i] {
				combo[i] = pick(options[i], idx[i], placeholder)
				break
			}
			idx[i] = 0
			combo[i] = pick(options[i], 0, placeholder)
		}
		if i < 0 {
			return false
		}
	}
}

// Count returns the size of the product Any would enumerate, saturating at
// limit so callers can log blow-ups without overflowing.
func Count[T any](options [][]T, limit int) int {
	total := 1
	for _, opts := range options {
		total *= max(len(opts), 1)
		if total >= limit {
			return limit
		}
	}
	return total
}

func pick[T any](opts []T, i int, placeholder T) T {
	if len(opts) == 0 {
		return placeholder
	}
	return opts[i]
}
