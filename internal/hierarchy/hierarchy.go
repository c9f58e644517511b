// Package hierarchy holds the shape rules of the arc → episode → signal →
// relay tree and bounded traversals over it. It never touches the store
// directly; callers supply a NodeSource bound to their transaction.
package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

type ItemType string

const (
	Arc     ItemType = "arc"
	Episode ItemType = "episode"
	Signal  ItemType = "signal"
	Relay   ItemType = "relay"
)

// MaxDepth bounds every traversal. A well-formed tree is four levels deep;
// the slack only exists so corrupted rows fail loudly instead of looping.
const MaxDepth = 64

var (
	ErrCycle          = errors.New("hierarchy: cycle detected")
	ErrTooDeep        = errors.New("hierarchy: traversal exceeded max depth")
	ErrInvalidType    = errors.New("invalid item type")
	ErrArcHasParent   = errors.New("arcs must be top level")
	ErrParentRequired = errors.New("parent is required")
)

// ParseType accepts one of the four item types, case-insensitively.
func ParseType(s string) (ItemType, bool) {
	t := ItemType(strings.ToLower(strings.TrimSpace(s)))
	if t.Depth() < 0 {
		return "", false
	}
	return t, true
}

// Depth is 0 for arcs and grows by one per level; -1 for unknown types.
func (t ItemType) Depth() int {
	switch t {
	case Arc:
		return 0
	case Episode:
		return 1
	case Signal:
		return 2
	case Relay:
		return 3
	default:
		return -1
	}
}

// ParentType returns the type a parent of t must have. ok is false for arcs.
func (t ItemType) ParentType() (ItemType, bool) {
	switch t {
	case Episode:
		return Arc, true
	case Signal:
		return Episode, true
	case Relay:
		return Signal, true
	default:
		return "", false
	}
}

// ValidateParent checks the shape rule for placing a child of type child
// beneath a parent of type parent (nil for top level).
func ValidateParent(child ItemType, parent *ItemType) error {
	if child.Depth() < 0 {
		return ErrInvalidType
	}
	want, needsParent := child.ParentType()
	if !needsParent {
		if parent != nil {
			return ErrArcHasParent
		}
		return nil
	}
	if parent == nil {
		return fmt.Errorf("%w: a %s must sit under an %s", ErrParentRequired, child, want)
	}
	if *parent != want {
		return fmt.Errorf("a %s must sit under a %s, not a %s", child, want, *parent)
	}
	return nil
}

// Node is the slice of a work item a traversal needs.
type Node struct {
	ID         uint
	ParentID   *uint
	Type       ItemType
	MeridianID uint
}

// NodeSource loads nodes for a Walker. Node returns (nil, nil) for a missing
// or inactive item. Children returns the active children of every given
// parent in one call.
type NodeSource interface {
	Node(id uint) (*Node, error)
	Children(parentIDs []uint) ([]Node, error)
}

type Walker struct {
	src      NodeSource
	maxDepth int
}

func NewWalker(src NodeSource) *Walker {
	return &Walker{src: src, maxDepth: MaxDepth}
}

// Ancestors returns the chain from startID (inclusive) up to the root. It
// stops early at a missing node.
func (w *Walker) Ancestors(startID uint) ([]Node, error) {
	var chain []Node
	visited := make(map[uint]bool)
	id := startID
	for {
		if visited[id] {
			return nil, ErrCycle
		}
		if len(chain) >= w.maxDepth {
			return nil, ErrTooDeep
		}
		visited[id] = true

		node, err := w.src.Node(id)
		if err != nil {
			return nil, err
		}
		if node == nil {
			return chain, nil
		}
		chain = append(chain, *node)
		if node.ParentID == nil {
			return chain, nil
		}
		id = *node.ParentID
	}
}

// FindArcAncestor walks up from startID (inclusive) to the nearest arc.
// It returns nil when the chain ends without one.
func (w *Walker) FindArcAncestor(startID uint) (*Node, error) {
	chain, err := w.Ancestors(startID)
	if err != nil {
		return nil, err
	}
	for i := range chain {
		if chain[i].Type == Arc {
			return &chain[i], nil
		}
	}
	return nil, nil
}

// IsWithin reports whether candidateID lies in the subtree rooted at rootID,
// rootID itself included.
func (w *Walker) IsWithin(candidateID, rootID uint) (bool, error) {
	chain, err := w.Ancestors(candidateID)
	if err != nil {
		return false, err
	}
	for _, n := range chain {
		if n.ID == rootID {
			return true, nil
		}
	}
	return false, nil
}

// Descendants returns the ids of every active descendant of rootID, level by
// level, excluding rootID itself.
func (w *Walker) Descendants(rootID uint) ([]uint, error) {
	var out []uint
	visited := map[uint]bool{rootID: true}
	frontier := []uint{rootID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= w.maxDepth {
			return nil, ErrTooDeep
		}
		children, err := w.src.Children(frontier)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(children))
		for _, child := range children {
			if visited[child.ID] {
				return nil, ErrCycle
			}
			visited[child.ID] = true
			out = append(out, child.ID)
			next = append(next, child.ID)
		}
		frontier = next
	}
	return out, nil
}
