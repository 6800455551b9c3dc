package search

// MergeByKey overlays source onto target by key and returns a new slice.
//
// For each source record, the first record in the result with the same key
// receives overlay(dst, src). Records with no match are appended and become
// eligible matches for later source records. Neither input is modified, so
// MergeByKey(a, nil) equals a and MergeByKey(nil, b) equals b.
func MergeByKey[T any, K comparable](target, source []T, key func(T) K, overlay func(dst *T, src T)) []T {
	out := make([]T, len(target), len(target)+len(source))
	copy(out, target)

	first := make(map[K]int, len(out))
	for i := len(out) - 1; i >= 0; i-- {
		first[key(out[i])] = i
	}

	for _, src := range source {
		k := key(src)
		if i, ok := first[k]; ok {
			overlay(&out[i], src)
			continue
		}
		first[k] = len(out)
		out = append(out, src)
	}
	return out
}
