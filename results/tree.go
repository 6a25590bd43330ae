// Package results accumulates resolved test outcomes into the hierarchical
// result tree written at the end of a run.
package results

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// DefaultPathDelimiter separates the segments of hierarchical test names.
const DefaultPathDelimiter = "/"

var (
	ErrEmptyPath    = errors.New("empty test path")
	ErrPathConflict = errors.New("path conflicts with an existing entry")
)

type node struct {
	children map[string]*node
	record   *types.TestOutcomeRecord
}

// Tree is an append-only mapping from path segments to outcome records.
// It is built by a single goroutine during a run and needs no locking.
type Tree struct {
	delimiter string
	root      *node
	size      int
}

// Leaf is a record together with its path in the tree.
type Leaf struct {
	Path   []string
	Record types.TestOutcomeRecord
}

// Name joins the leaf path with the given delimiter.
func (l Leaf) Name(delimiter string) string {
	return strings.Join(l.Path, delimiter)
}

// NewTree creates an empty tree that splits names on delimiter.
func NewTree(delimiter string) *Tree {
	if delimiter == "" {
		delimiter = DefaultPathDelimiter
	}
	return &Tree{
		delimiter: delimiter,
		root:      &node{children: make(map[string]*node)},
	}
}

func (t *Tree) Delimiter() string {
	return t.delimiter
}

// Len returns the number of records in the tree.
func (t *Tree) Len() int {
	return t.size
}

// Split breaks a hierarchical test name into path segments.
func (t *Tree) Split(name string) []string {
	return strings.Split(name, t.delimiter)
}

// InsertName inserts a record under its delimited name.
func (t *Tree) InsertName(name string, record types.TestOutcomeRecord) error {
	return t.Insert(t.Split(name), record)
}

// Insert adds a record at path. A path may not pass through an existing
// record nor end on an existing entry.
func (t *Tree) Insert(path []string, record types.TestOutcomeRecord) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	for _, segment := range path {
		if segment == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrEmptyPath, strings.Join(path, t.delimiter))
		}
	}

	cur := t.root
	for i, segment := range path[:len(path)-1] {
		next, ok := cur.children[segment]
		if !ok {
			next = &node{children: make(map[string]*node)}
			cur.children[segment] = next
		}
		if next.record != nil {
			return fmt.Errorf("%w: %q is a test", ErrPathConflict, strings.Join(path[:i+1], t.delimiter))
		}
		cur = next
	}

	last := path[len(path)-1]
	if _, exists := cur.children[last]; exists {
		return fmt.Errorf("%w: %q", ErrPathConflict, strings.Join(path, t.delimiter))
	}
	rec := record
	cur.children[last] = &node{record: &rec}
	t.size++
	return nil
}

type frame struct {
	node *node
	path []string
}

// Leaves returns every record in the tree. Order is unspecified.
func (t *Tree) Leaves() []Leaf {
	leaves := make([]Leaf, 0, t.size)
	stack := []frame{{node: t.root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.node.record != nil {
			leaves = append(leaves, Leaf{Path: cur.path, Record: *cur.node.record})
			continue
		}
		for segment, child := range cur.node.children {
			path := make([]string, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			stack = append(stack, frame{node: child, path: append(path, segment)})
		}
	}
	return leaves
}

// Render converts the tree into nested maps whose leaves have the form
// {"expected": "...", "actual": "...", "is_regression": true}.
func (t *Tree) Render() map[string]any {
	out := make(map[string]any, len(t.root.children))
	type pending struct {
		node   *node
		target map[string]any
	}
	stack := []pending{{node: t.root, target: out}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for segment, child := range cur.node.children {
			if child.record != nil {
				cur.target[segment] = renderLeaf(*child.record)
				continue
			}
			m := make(map[string]any, len(child.children))
			cur.target[segment] = m
			stack = append(stack, pending{node: child, target: m})
		}
	}
	return out
}

func renderLeaf(record types.TestOutcomeRecord) map[string]any {
	leaf := map[string]any{
		"expected": record.Expected.String(),
		"actual":   record.Actual.String(),
	}
	if record.IsRegression {
		leaf["is_regression"] = true
	}
	return leaf
}
