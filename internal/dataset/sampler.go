package dataset

import "math/rand/v2"

// Select draws n samples without replacement using a seeded generator,
// so a (seed, trial) pair always yields the same draw. When n covers
// the whole dataset the original order is preserved.
func Select[T any](items []T, n int, seed uint64) []T {
	if n >= len(items) {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	rng := rand.New(rand.NewPCG(seed, seed<<1|1))
	perm := rng.Perm(len(items))

	out := make([]T, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, items[idx])
	}
	return out
}
