// Package toposort orders extension dependency graphs so that every package
// is loaded after the packages it depends on.
//
// The sort is a depth-first search with three-coloring. Keys are visited in
// input order and dependencies in listed order, so the same input always
// yields the same output.
package toposort

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is matched by every *CycleError via errors.Is.
var ErrCycle = errors.New("dependency graph is not acyclic")

// CycleError indicates that the graph contains a cycle, preventing a load order.
type CycleError struct {
	// Cycle is the path from the re-entered node back to itself,
	// e.g. [a b c a].
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Is reports whether target is ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Node is one key of the graph with its dependencies in load-relevant order.
type Node struct {
	Name string
	Deps []string
}

type mark int

const (
	unvisited mark = iota
	inProgress
	done
)

type sorter struct {
	deps  map[string][]string
	marks map[string]mark
	path  []string
	order []string
}

// Sort returns the nodes in dependency order. Dependencies that are not keys
// of the graph are treated as leaves and included in the output ahead of
// their first dependent. A cycle aborts the sort with a *CycleError and no
// partial result.
func Sort(nodes []Node) ([]string, error) {
	s := &sorter{
		deps:  make(map[string][]string, len(nodes)),
		marks: make(map[string]mark, len(nodes)),
	}

	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, seen := s.deps[n.Name]; !seen {
			keys = append(keys, n.Name)
			s.deps[n.Name] = nil
		}
		s.deps[n.Name] = append(s.deps[n.Name], n.Deps...)
	}

	for _, k := range keys {
		if err := s.visit(k); err != nil {
			return nil, err
		}
	}
	return s.order, nil
}

func (s *sorter) visit(name string) error {
	switch s.marks[name] {
	case done:
		return nil
	case inProgress:
		return &CycleError{Cycle: s.cycleFrom(name)}
	}

	s.marks[name] = inProgress
	s.path = append(s.path, name)

	for _, dep := range s.deps[name] {
		if err := s.visit(dep); err != nil {
			return err
		}
	}

	s.path = s.path[:len(s.path)-1]
	s.marks[name] = done
	s.order = append(s.order, name)
	return nil
}

// cycleFrom extracts the cycle that closes on name from the current DFS path.
func (s *sorter) cycleFrom(name string) []string {
	for i, n := range s.path {
		if n == name {
			cycle := append([]string(nil), s.path[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}

// FromMap converts a dependency map into nodes ordered by key, which is the
// order the registry document stores them in.
func FromMap(m map[string][]string) []Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, Node{Name: k, Deps: m[k]})
	}
	return nodes
}
