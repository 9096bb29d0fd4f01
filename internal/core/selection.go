package core

import "sort"

// Selection is the set of subscription ids counted while ghost mode is on.
type Selection map[int]struct{}

// NewSelection returns a selection holding ids.
func NewSelection(ids ...int) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Toggle removes id if present, adds it otherwise, and reports the new
// membership. Toggling the same id twice restores the original set.
func (s Selection) Toggle(id int) bool {
	if _, ok := s[id]; ok {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s Selection) Len() int {
	return len(s)
}

// IDs returns the members in ascending order.
func (s Selection) IDs() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (s Selection) Clone() Selection {
	c := make(Selection, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func (s Selection) Equal(o Selection) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}
