package session

// Diff compares two roster snapshots. Order within either input is
// irrelevant; duplicates are ignored. The results keep the order in which
// ids appear in next and previous respectively.
func Diff(previous, next []string) (joined, left []string) {
	prev := toSet(previous)
	nxt := toSet(next)

	seen := make(map[string]struct{}, len(next))
	for _, id := range next {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := prev[id]; !ok {
			joined = append(joined, id)
		}
	}

	seen = make(map[string]struct{}, len(previous))
	for _, id := range previous {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := nxt[id]; !ok {
			left = append(left, id)
		}
	}
	return joined, left
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
