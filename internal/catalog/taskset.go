package catalog

import "sort"

// TaskSet is a set of task names.
type TaskSet map[string]struct{}

// NewTaskSet builds a set from names.
func NewTaskSet(names ...string) TaskSet {
	set := make(TaskSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Add inserts names into the set.
func (s TaskSet) Add(names ...string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

// Has reports membership.
func (s TaskSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns a new set containing the members of s and other.
func (s TaskSet) Union(other TaskSet) TaskSet {
	out := make(TaskSet, len(s)+len(other))
	for name := range s {
		out[name] = struct{}{}
	}
	for name := range other {
		out[name] = struct{}{}
	}
	return out
}

// Missing returns the members of universe absent from s, sorted.
func (s TaskSet) Missing(universe []string) []string {
	var missing []string
	for _, name := range universe {
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// ContainsAll reports whether every name is in s.
func (s TaskSet) ContainsAll(names []string) bool {
	for _, name := range names {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s TaskSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
