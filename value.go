// File: snapconfig/value.go
package snapconfig

import "sort"

// Kind identifies the variant stored in a Node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Pair is one entry of an object node: a key and the arena index of its
// value.
type Pair struct {
	Key   string
	Child uint32
}

// Node is a single value in a Tree. Kind selects which of the remaining
// fields is meaningful. Arrays and objects reference their children by
// arena index rather than by pointer, which keeps the whole tree
// relocatable byte-for-byte.
type Node struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Elems []uint32 // KindArray
	Pairs []Pair   // KindObject, sorted ascending by raw key bytes
}

func nullNode() Node            { return Node{Kind: KindNull} }
func boolNode(b bool) Node      { return Node{Kind: KindBool, Bool: b} }
func intNode(i int64) Node      { return Node{Kind: KindInt, Int: i} }
func floatNode(f float64) Node  { return Node{Kind: KindFloat, Float: f} }
func stringNode(s string) Node  { return Node{Kind: KindString, Str: s} }
func arrayNode(e []uint32) Node { return Node{Kind: KindArray, Elems: e} }
func objectNode(p []Pair) Node  { return Node{Kind: KindObject, Pairs: p} }

// sortPairs orders object entries ascending by raw key bytes, the
// precondition for binary-search lookup on the archived form. The sort is
// stable so duplicate keys keep their source order.
func sortPairs(pairs []Pair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Key < pairs[j].Key
	})
}

// Tree is an append-only arena of nodes plus an optional root index.
// Children are appended before any node that references them, so the
// structure is acyclic by construction. Node indices are permanent.
type Tree struct {
	nodes   []Node
	root    uint32
	hasRoot bool
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Append adds a node to the arena and returns its index. Indices are
// issued in increasing order starting at zero.
func (t *Tree) Append(n Node) uint32 {
	idx := uint32(len(t.nodes))
	t.nodes = append(t.nodes, n)
	return idx
}

// SetRoot marks idx as the root of the tree.
func (t *Tree) SetRoot(idx uint32) {
	t.root = idx
	t.hasRoot = true
}

// Root returns the root index, if one has been set.
func (t *Tree) Root() (uint32, bool) {
	return t.root, t.hasRoot
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Materialize converts the subtree rooted at idx into plain Go values:
// nil, bool, int64, float64, string, []any, and map[string]any. When an
// object carries duplicate keys the last occurrence wins in the map.
func (t *Tree) Materialize(idx uint32) any {
	n := &t.nodes[idx]
	switch n.Kind {
	case KindNull:
		return nil
	case KindBool:
		return n.Bool
	case KindInt:
		return n.Int
	case KindFloat:
		return n.Float
	case KindString:
		return n.Str
	case KindArray:
		out := make([]any, len(n.Elems))
		for i, child := range n.Elems {
			out[i] = t.Materialize(child)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(n.Pairs))
		for _, p := range n.Pairs {
			out[p.Key] = t.Materialize(p.Child)
		}
		return out
	default:
		return nil
	}
}

// MaterializeRoot materializes the whole tree from its root.
func (t *Tree) MaterializeRoot() (any, error) {
	root, ok := t.Root()
	if !ok {
		return nil, errMissingRoot
	}
	return t.Materialize(root), nil
}
