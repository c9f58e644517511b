package hierarchy

import (
	"errors"
	"sort"
	"testing"
)

type memSource struct {
	nodes  map[uint]Node
	calls  int
	failOn uint
}

func newMemSource(nodes ...Node) *memSource {
	m := &memSource{nodes: make(map[uint]Node)}
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	return m
}

func (m *memSource) Node(id uint) (*Node, error) {
	m.calls++
	if id == m.failOn {
		return nil, errors.New("boom")
	}
	n, ok := m.nodes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (m *memSource) Children(parentIDs []uint) ([]Node, error) {
	m.calls++
	want := make(map[uint]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	var out []Node
	for _, n := range m.nodes {
		if n.ParentID != nil && want[*n.ParentID] {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func ptr(id uint) *uint { return &id }

// 1 arc → 2 episode → 3 signal → 4 relay, plus 5 episode under 1.
func sampleTree() *memSource {
	return newMemSource(
		Node{ID: 1, Type: Arc, MeridianID: 10},
		Node{ID: 2, ParentID: ptr(1), Type: Episode, MeridianID: 10},
		Node{ID: 3, ParentID: ptr(2), Type: Signal, MeridianID: 10},
		Node{ID: 4, ParentID: ptr(3), Type: Relay, MeridianID: 10},
		Node{ID: 5, ParentID: ptr(1), Type: Episode, MeridianID: 10},
	)
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"arc", "Episode", " signal ", "RELAY"} {
		if _, ok := ParseType(s); !ok {
			t.Errorf("ParseType(%q) should succeed", s)
		}
	}
	for _, s := range []string{"", "epic", "task"} {
		if _, ok := ParseType(s); ok {
			t.Errorf("ParseType(%q) should fail", s)
		}
	}
}

func TestValidateParent(t *testing.T) {
	arc, episode, signal := Arc, Episode, Signal

	cases := []struct {
		name    string
		child   ItemType
		parent  *ItemType
		wantErr bool
	}{
		{"arc at top level", Arc, nil, false},
		{"arc under arc", Arc, &arc, true},
		{"episode under arc", Episode, &arc, false},
		{"episode at top level", Episode, nil, true},
		{"signal under episode", Signal, &episode, false},
		{"signal under arc", Signal, &arc, true},
		{"relay under signal", Relay, &signal, false},
		{"relay under episode", Relay, &episode, true},
		{"unknown type", ItemType("epic"), nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateParent(tc.child, tc.parent)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateParent(%s) error = %v, wantErr %v", tc.child, err, tc.wantErr)
			}
		})
	}

	if err := ValidateParent(Episode, nil); !errors.Is(err, ErrParentRequired) {
		t.Errorf("expected ErrParentRequired, got %v", err)
	}
	if err := ValidateParent(Arc, &arc); !errors.Is(err, ErrArcHasParent) {
		t.Errorf("expected ErrArcHasParent, got %v", err)
	}
}

func TestFindArcAncestor(t *testing.T) {
	w := NewWalker(sampleTree())

	arc, err := w.FindArcAncestor(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arc == nil || arc.ID != 1 {
		t.Fatalf("expected arc 1, got %+v", arc)
	}

	arc, err = w.FindArcAncestor(1)
	if err != nil || arc == nil || arc.ID != 1 {
		t.Fatalf("an arc is its own arc ancestor, got %+v, %v", arc, err)
	}
}

func TestFindArcAncestor_NoArc(t *testing.T) {
	src := newMemSource(
		Node{ID: 7, ParentID: ptr(99), Type: Signal},
	)
	arc, err := NewWalker(src).FindArcAncestor(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arc != nil {
		t.Fatalf("expected no arc, got %+v", arc)
	}
}

func TestAncestors_Cycle(t *testing.T) {
	src := newMemSource(
		Node{ID: 1, ParentID: ptr(2), Type: Episode},
		Node{ID: 2, ParentID: ptr(1), Type: Signal},
	)
	if _, err := NewWalker(src).FindArcAncestor(1); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestAncestors_TooDeep(t *testing.T) {
	src := newMemSource()
	for i := uint(1); i <= MaxDepth+5; i++ {
		src.nodes[i] = Node{ID: i, ParentID: ptr(i + 1), Type: Relay}
	}
	if _, err := NewWalker(src).Ancestors(1); !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
}

func TestAncestors_SourceError(t *testing.T) {
	src := sampleTree()
	src.failOn = 2
	if _, err := NewWalker(src).Ancestors(4); err == nil {
		t.Fatal("expected the source error to propagate")
	}
}

func TestDescendants(t *testing.T) {
	w := NewWalker(sampleTree())

	got, err := w.Descendants(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []uint{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("Descendants(1) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Descendants(1) = %v, want %v", got, want)
		}
	}

	leaf, err := w.Descendants(4)
	if err != nil || len(leaf) != 0 {
		t.Fatalf("a relay has no descendants, got %v, %v", leaf, err)
	}
}

func TestDescendants_Cycle(t *testing.T) {
	src := newMemSource(
		Node{ID: 1, ParentID: ptr(3), Type: Arc},
		Node{ID: 2, ParentID: ptr(1), Type: Episode},
		Node{ID: 3, ParentID: ptr(2), Type: Signal},
	)
	if _, err := NewWalker(src).Descendants(1); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestIsWithin(t *testing.T) {
	w := NewWalker(sampleTree())

	cases := []struct {
		candidate, root uint
		want            bool
	}{
		{4, 2, true},
		{2, 2, true},
		{5, 2, false},
		{1, 4, false},
	}
	for _, tc := range cases {
		got, err := w.IsWithin(tc.candidate, tc.root)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tc.want {
			t.Errorf("IsWithin(%d, %d) = %v, want %v", tc.candidate, tc.root, got, tc.want)
		}
	}
}
