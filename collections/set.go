// Package collections provides generic data structures.
package collections

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Set represents a mathematical set of comparable elements.
// It is implemented as a map with empty struct values for memory efficiency.
type Set[T comparable] map[T]struct{}

// NewSet creates a new set containing the given values.
func NewSet[T comparable](vals ...T) Set[T] {
	s := make(Set[T], len(vals))
	s.Add(vals...)
	return s
}

// Add adds the given values to the set.
func (s Set[T]) Add(vals ...T) {
	for _, v := range vals {
		s[v] = struct{}{}
	}
}

// AddIter adds all values from the iterator to the set.
func (s Set[T]) AddIter(vals iter.Seq[T]) {
	for v := range vals {
		s[v] = struct{}{}
	}
}

// Remove removes the given values from the set.
func (s Set[T]) Remove(vals ...T) {
	for _, v := range vals {
		delete(s, v)
	}
}

// Iter returns an iterator over the elements in the set.
func (s Set[T]) Iter() iter.Seq[T] {
	return maps.Keys(s)
}

// Members returns all elements in the set as a slice.
func (s Set[T]) Members() []T {
	return slices.Collect(s.Iter())
}

// String returns a string representation of the set.
func (s Set[T]) String() string {
	return fmt.Sprintf("%v", s.Members())
}

// Contains returns true if the set contains all of the given values.
func (s Set[T]) Contains(vals ...T) bool {
	for _, v := range vals {
		if _, ok := s[v]; !ok {
			return false
		}
	}
	return true
}

// ContainsAny returns true if the set contains at least one of the given values.
func (s Set[T]) ContainsAny(vals ...T) bool {
	for _, v := range vals {
		if _, ok := s[v]; ok {
			return true
		}
	}
	return false
}

// Size returns the number of elements in the set.
func (s Set[T]) Size() int {
	return len(s)
}

// Empty returns true if the set contains no elements.
func (s Set[T]) Empty() bool {
	return len(s) == 0
}

// Equal returns true if s and s2 are identical sets.
func (s Set[T]) Equal(s2 Set[T]) bool {
	return maps.Equal(s, s2)
}

// Clone returns a copy of s.
func (s Set[T]) Clone() Set[T] {
	return maps.Clone(s)
}

// Union returns a new set containing all elements from both sets.
func (s Set[T]) Union(s2 Set[T]) Set[T] {
	result := maps.Clone(s)
	result.AddIter(s2.Iter())
	return result
}

// Intersection returns a new set containing only elements present in both sets.
func (s Set[T]) Intersection(s2 Set[T]) Set[T] {
	result := NewSet[T]()
	for v := range s {
		if s2.Contains(v) {
			result.Add(v)
		}
	}
	return result
}

// Difference returns a new set containing elements in s but not in s2.
func (s Set[T]) Difference(s2 Set[T]) Set[T] {
	result := NewSet[T]()
	for v := range s {
		if !s2.Contains(v) {
			result.Add(v)
		}
	}
	return result
}

// MarshalJSON implements json.Marshaler interface.
// The set is marshaled as a JSON array containing all elements.
func (s Set[T]) MarshalJSON() ([]byte, error) {
	members := s.Members()
	if members == nil {
		members = []T{}
	}
	return json.Marshal(members)
}

// UnmarshalJSON implements json.Unmarshaler interface.
// The set is unmarshaled from a JSON array of elements.
func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var members []T
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	*s = NewSet(members...)
	return nil
}
