package nutmeg

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Float | constraints.Integer
}

func Filter[T any](slice []T, predicate func(T) bool) []T {
	filtered := make([]T, 0, len(slice))
	for _, elem := range slice {
		if predicate(elem) {
			filtered = append(filtered, elem)
		}
	}
	return filtered
}

func Min[T Number](a T, b T) T {
	if a > b {
		return b
	}

	return a
}

// MinMax returns the smallest and largest of values, ignoring NaNs. ok is
// false when there is no such value.
func MinMax[T constraints.Float](values []T) (lo T, hi T, ok bool) {
	for _, v := range values {
		if v != v {
			continue
		}

		if !ok {
			lo, hi, ok = v, v, true
			continue
		}

		lo = Min(lo, v)
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}
