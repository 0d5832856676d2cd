package aggregate

import "rookie/internal/domain"

// Merge combines asset lists into one list keyed by ID. The first occurrence
// of an ID wins and output order is first-seen order. Merge never modifies
// its inputs.
func Merge(lists ...[]domain.Asset) []domain.Asset {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	seen := make(map[string]struct{}, n)
	out := make([]domain.Asset, 0, n)
	for _, l := range lists {
		for _, a := range l {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// Index returns a lookup table by ID over a merged list.
func Index(assets []domain.Asset) map[string]domain.Asset {
	m := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		if _, ok := m[a.ID]; !ok {
			m[a.ID] = a
		}
	}
	return m
}
