package selection

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

var (
	// ErrNoCandidates is returned when there is nothing to select from.
	ErrNoCandidates = errors.New("no candidates")

	// ErrIndexOutOfRange is returned when a resolver reports an index that
	// does not address a candidate.
	ErrIndexOutOfRange = errors.New("resolved index out of range")

	// ErrAmbiguous is returned under TieStrict when several candidates share
	// the best score.
	ErrAmbiguous = errors.New("ambiguous selection")
)

// TiePolicy decides what happens when candidates share the best score.
type TiePolicy int

const (
	// TieFirst keeps the first candidate with the best score.
	TieFirst TiePolicy = iota
	// TieStrict fails with ErrAmbiguous.
	TieStrict
)

// ParseTiePolicy accepts "first" (or "") and "strict".
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch s {
	case "", "first":
		return TieFirst, nil
	case "strict":
		return TieStrict, nil
	default:
		return TieFirst, fmt.Errorf("unknown tie policy %q (want first or strict)", s)
	}
}

// String returns the policy name.
func (p TiePolicy) String() string {
	if p == TieStrict {
		return "strict"
	}
	return "first"
}

// Result describes a selection.
type Result struct {
	Index     int               `json:"index"`
	PointSet  geometry.PointSet `json:"point_set"`
	Criterion string            `json:"criterion,omitempty"`
	Scores    []float64         `json:"scores,omitempty"`
}

// Scores evaluates c over every candidate, in candidate order.
func Scores(candidates []geometry.PointSet, c Criterion) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, ps := range candidates {
		if ps.Len() == 0 {
			return nil, fmt.Errorf("candidate %d: %w", i, geometry.ErrEmptyPointSet)
		}
		s, err := c.Score(ps)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		scores[i] = s
	}
	return scores, nil
}

// Select returns the candidate with the lowest score under c. Ties go to the
// first occurrence unless policy is TieStrict.
func Select(candidates []geometry.PointSet, c Criterion, policy TiePolicy) (*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	scores, err := Scores(candidates, c)
	if err != nil {
		return nil, err
	}

	idx := floats.MinIdx(scores)
	if policy == TieStrict {
		for i, s := range scores {
			if i != idx && s == scores[idx] {
				return nil, fmt.Errorf("%w: candidates %d and %d are both %s", ErrAmbiguous, idx, i, c.Name())
			}
		}
	}

	return &Result{
		Index:     idx,
		PointSet:  candidates[idx],
		Criterion: c.Name(),
		Scores:    scores,
	}, nil
}

// SelectNamed asks resolver which of candidates is instance and returns it.
// candidates must be the detections of category, in detection order.
func SelectNamed(ctx context.Context, resolver detection.InstanceResolver, candidates []geometry.PointSet, instance, category string) (*Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoCandidates, category)
	}
	idx, err := resolver.FindInstanceInCategory(ctx, instance, category)
	if err != nil {
		return nil, fmt.Errorf("resolve %q in %q: %w", instance, category, err)
	}
	if idx < 0 || idx >= len(candidates) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, idx, len(candidates))
	}
	return &Result{Index: idx, PointSet: candidates[idx]}, nil
}
