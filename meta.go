package crud

// Record is implemented by every type that has a stable identifier.
// GetID must be pure: two calls on the same value return equal identifiers.
type Record[ID comparable] interface {
	GetID() ID
}

// IDs collects the identifier of each value, preserving input order.
func IDs[T Record[ID], ID comparable](values []T) []ID {
	ids := make([]ID, len(values))
	for i, v := range values {
		ids[i] = v.GetID()
	}
	return ids
}

// ByID indexes values by identifier. When two values share an identifier the
// later one wins.
func ByID[T Record[ID], ID comparable](values []T) map[ID]T {
	m := make(map[ID]T, len(values))
	for _, v := range values {
		m[v.GetID()] = v
	}
	return m
}

// GroupBy buckets values by the key returned from key. Order inside each
// bucket follows the input. Keys with no values are absent from the result.
func GroupBy[T any, K comparable](values []T, key func(T) K) map[K][]T {
	m := make(map[K][]T)
	for _, v := range values {
		k := key(v)
		m[k] = append(m[k], v)
	}
	return m
}

// Lookup reads a grouping map. A key that is missing yields an empty, non-nil slice.
func Lookup[K comparable, V any](m map[K][]V, key K) []V {
	if vs, ok := m[key]; ok && vs != nil {
		return vs
	}
	return []V{}
}

// Distinct removes duplicate identifiers, keeping the first occurrence.
func Distinct[ID comparable](ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// flatten concatenates the buckets of a grouping map, visiting keys in the
// order given so the result is deterministic.
func flatten[K comparable, V any](keys []K, m map[K][]V) []V {
	var out []V
	for _, k := range keys {
		out = append(out, m[k]...)
	}
	return out
}
