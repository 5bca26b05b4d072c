package core

import "strings"

// Source identifies the retrieval stage that produced a chunk.
type Source uint8

const (
	SourceKeyword Source = 1 << iota
	SourceVector
	SourceDefinition
	SourceUsage
	SourceCallGraph
)

var sourceNames = []struct {
	bit  Source
	name string
}{
	{SourceKeyword, "keyword"},
	{SourceVector, "vector"},
	{SourceDefinition, "definition"},
	{SourceUsage, "usage"},
	{SourceCallGraph, "callgraph"},
}

// SourceSet is a bitset over the closed set of retrieval sources. The zero
// value is the empty set; union and membership are O(1).
type SourceSet uint8

// Add returns the set with src included.
func (s SourceSet) Add(src Source) SourceSet {
	return s | SourceSet(src)
}

// Union merges two sets.
func (s SourceSet) Union(other SourceSet) SourceSet {
	return s | other
}

// Has reports membership.
func (s SourceSet) Has(src Source) bool {
	return s&SourceSet(src) != 0
}

// Count returns the number of distinct sources in the set.
func (s SourceSet) Count() int {
	n := 0
	for v := s; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Names lists the member sources in declaration order.
func (s SourceSet) Names() []string {
	var names []string
	for _, sn := range sourceNames {
		if s.Has(sn.bit) {
			names = append(names, sn.name)
		}
	}
	return names
}

func (s SourceSet) String() string {
	return strings.Join(s.Names(), ",")
}
