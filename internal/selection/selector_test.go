package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// setsAt builds one point set per centroid, each two points symmetric
// around the centroid so the mean is exact.
func setsAt(centroids ...r3.Vector) []geometry.PointSet {
	sets := make([]geometry.PointSet, len(centroids))
	for i, c := range centroids {
		d := r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}
		sets[i] = geometry.NewPointSet(c.Sub(d), c.Add(d))
	}
	return sets
}

type stubResolver struct {
	idx int
	err error
}

func (s stubResolver) FindInstanceInCategory(context.Context, string, string) (int, error) {
	return s.idx, s.err
}

func TestSelect_LeftmostBranch(t *testing.T) {
	branches := setsAt(r3.Vector{X: 3}, r3.Vector{X: 1}, r3.Vector{X: 2})

	res, err := Select(branches, Leftmost, TieFirst)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.Index != 1 {
		t.Errorf("Index: got %d, want 1", res.Index)
	}
	if res.PointSet.Points[0] != branches[1].Points[0] {
		t.Error("returned point set is not candidates[1]")
	}
	if res.Criterion != "leftmost" {
		t.Errorf("Criterion: got %q", res.Criterion)
	}
}

func TestSelect_Criteria(t *testing.T) {
	candidates := setsAt(
		r3.Vector{X: 0, Y: 5, Z: 1},
		r3.Vector{X: 4, Y: 2, Z: 0},
		r3.Vector{X: -2, Y: 3, Z: 7},
	)

	tests := []struct {
		name      string
		criterion Criterion
		want      int
	}{
		{"leftmost", Leftmost, 2},
		{"rightmost", Rightmost, 1},
		{"front", Front, 1},
		{"back", Back, 0},
		{"lowest", Lowest, 1},
		{"highest", Highest, 2},
		{"nearest origin", NearestTo(r3.Vector{}), 1},
		{"nearest reference", NearestTo(r3.Vector{X: -2, Y: 3, Z: 6}), 2},
		{"farthest origin", FarthestFrom(r3.Vector{}), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Select(candidates, tt.criterion, TieFirst)
			if err != nil {
				t.Fatalf("Select failed: %v", err)
			}
			if res.Index != tt.want {
				t.Errorf("Index: got %d, want %d (scores %v)", res.Index, tt.want, res.Scores)
			}
		})
	}
}

func TestSelect_Size(t *testing.T) {
	candidates := []geometry.PointSet{
		geometry.NewPointSet(r3.Vector{}, r3.Vector{}),
		geometry.NewPointSet(r3.Vector{}, r3.Vector{}, r3.Vector{}),
		geometry.NewPointSet(r3.Vector{}),
	}
	if res, _ := Select(candidates, Largest, TieFirst); res.Index != 1 {
		t.Errorf("Largest: got %d, want 1", res.Index)
	}
	if res, _ := Select(candidates, Smallest, TieFirst); res.Index != 2 {
		t.Errorf("Smallest: got %d, want 2", res.Index)
	}
}

func TestSelect_Ties(t *testing.T) {
	candidates := setsAt(r3.Vector{X: 2}, r3.Vector{X: 1, Y: 4}, r3.Vector{X: 1, Y: -4})

	res, err := Select(candidates, Leftmost, TieFirst)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.Index != 1 {
		t.Errorf("first occurrence: got %d, want 1", res.Index)
	}

	_, err = Select(candidates, Leftmost, TieStrict)
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}

	// A tie that is not the minimum is not ambiguous.
	candidates = setsAt(r3.Vector{X: 0}, r3.Vector{X: 5}, r3.Vector{X: 5})
	if _, err := Select(candidates, Leftmost, TieStrict); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSelect_SingleCandidate(t *testing.T) {
	res, err := Select(setsAt(r3.Vector{X: 9}), Leftmost, TieStrict)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if res.Index != 0 {
		t.Errorf("Index: got %d, want 0", res.Index)
	}
}

func TestSelect_Errors(t *testing.T) {
	if _, err := Select(nil, Leftmost, TieFirst); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}

	withEmpty := append(setsAt(r3.Vector{X: 1}), geometry.PointSet{})
	if _, err := Select(withEmpty, Leftmost, TieFirst); !errors.Is(err, geometry.ErrEmptyPointSet) {
		t.Errorf("expected ErrEmptyPointSet, got %v", err)
	}
}

func TestSelectNamed(t *testing.T) {
	ctx := context.Background()
	mugs := setsAt(r3.Vector{X: 0}, r3.Vector{X: 1}, r3.Vector{X: 2})

	res, err := SelectNamed(ctx, stubResolver{idx: 2}, mugs, "blue mug", "mug")
	if err != nil {
		t.Fatalf("SelectNamed failed: %v", err)
	}
	if res.Index != 2 || res.PointSet.Points[0] != mugs[2].Points[0] {
		t.Errorf("expected candidates[2], got index %d", res.Index)
	}
}

func TestSelectNamed_Errors(t *testing.T) {
	ctx := context.Background()
	mugs := setsAt(r3.Vector{X: 0}, r3.Vector{X: 1})
	boom := errors.New("boom")

	tests := []struct {
		name       string
		resolver   stubResolver
		candidates []geometry.PointSet
		want       error
	}{
		{"no candidates", stubResolver{idx: 0}, nil, ErrNoCandidates},
		{"index too large", stubResolver{idx: 2}, mugs, ErrIndexOutOfRange},
		{"negative index", stubResolver{idx: -1}, mugs, ErrIndexOutOfRange},
		{"resolver error", stubResolver{idx: -1, err: boom}, mugs, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectNamed(ctx, tt.resolver, tt.candidates, "blue mug", "mug")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseCriterion(t *testing.T) {
	for _, word := range []string{"left", "Leftmost", "right", "top", "bottom", "front", "back", "nearest", "closest", "farthest", "largest", "smallest"} {
		if _, ok := ParseCriterion(word, r3.Vector{}); !ok {
			t.Errorf("ParseCriterion(%q) not recognized", word)
		}
	}
	if _, ok := ParseCriterion("blue", r3.Vector{}); ok {
		t.Error("color word should not parse as a criterion")
	}
	if c, _ := ParseCriterion("left", r3.Vector{}); c.Name() != "leftmost" {
		t.Errorf("left: got %q", c.Name())
	}
}

func TestParseTiePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    TiePolicy
		wantErr bool
	}{
		{"", TieFirst, false},
		{"first", TieFirst, false},
		{"strict", TieStrict, false},
		{"random", TieFirst, true},
	}
	for _, tt := range tests {
		got, err := ParseTiePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTiePolicy(%q): got (%v, %v)", tt.in, got, err)
		}
	}
}
