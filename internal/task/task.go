package task

import "sort"

// ID names one unit of work. It matches one entry in the source root and,
// once the task succeeds, one entry in the output root.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Set is an unordered collection of task identifiers.
type Set map[ID]struct{}

// NewSet builds a set from the given identifiers. Duplicates collapse.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Has reports whether id is a member of the set.
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}

// Union returns a new set holding the members of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Slice returns the members in lexical order. The order is for stable logs
// and reports only; nothing in the scheduler depends on it.
func (s Set) Slice() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Resolve computes the pending set: every member of source that is not a
// member of produced. It is a pure function and never mutates its inputs.
func Resolve(source, produced Set) Set {
	pending := make(Set)
	for id := range source {
		if !produced.Has(id) {
			pending[id] = struct{}{}
		}
	}
	return pending
}
