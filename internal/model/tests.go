package model

// TestSet is an insertion-ordered set of test identifiers.
type TestSet []string

// Add appends names that are not yet present and returns the updated set.
func (s TestSet) Add(names ...string) TestSet {
	for _, name := range names {
		if name != "" && !s.Contains(name) {
			s = append(s, name)
		}
	}
	return s
}

// Contains reports whether name is in the set.
func (s TestSet) Contains(name string) bool {
	for _, existing := range s {
		if existing == name {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every name is in the set.
func (s TestSet) ContainsAll(names []string) bool {
	for _, name := range names {
		if !s.Contains(name) {
			return false
		}
	}
	return true
}
