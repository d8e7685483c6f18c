package selection

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// Criterion scores a candidate; Select picks the lowest score.
//
// Criteria that prefer large values (rightmost, highest) negate them so the
// selector is always an argmin.
type Criterion interface {
	Name() string
	Score(ps geometry.PointSet) (float64, error)
}

// CriterionFunc adapts a scoring function to the Criterion interface.
type CriterionFunc struct {
	Label string
	Fn    func(ps geometry.PointSet) (float64, error)
}

// Name returns the criterion label.
func (c CriterionFunc) Name() string { return c.Label }

// Score calls the wrapped function.
func (c CriterionFunc) Score(ps geometry.PointSet) (float64, error) { return c.Fn(ps) }

// ByCentroidAxis scores by the centroid coordinate along axis, negated when
// descending is set.
func ByCentroidAxis(name string, axis geometry.Axis, descending bool) Criterion {
	return CriterionFunc{
		Label: name,
		Fn: func(ps geometry.PointSet) (float64, error) {
			c, err := geometry.Centroid(ps)
			if err != nil {
				return 0, err
			}
			v := geometry.Component(c, axis)
			if descending {
				return -v, nil
			}
			return v, nil
		},
	}
}

var (
	// Leftmost prefers the smallest centroid X.
	Leftmost = ByCentroidAxis("leftmost", geometry.AxisX, false)
	// Rightmost prefers the largest centroid X.
	Rightmost = ByCentroidAxis("rightmost", geometry.AxisX, true)
	// Front prefers the smallest centroid Y (closest to the viewer).
	Front = ByCentroidAxis("front", geometry.AxisY, false)
	// Back prefers the largest centroid Y.
	Back = ByCentroidAxis("back", geometry.AxisY, true)
	// Lowest prefers the smallest centroid Z.
	Lowest = ByCentroidAxis("lowest", geometry.AxisZ, false)
	// Highest prefers the largest centroid Z.
	Highest = ByCentroidAxis("highest", geometry.AxisZ, true)

	// Largest prefers the candidate with the most points.
	Largest Criterion = CriterionFunc{Label: "largest", Fn: func(ps geometry.PointSet) (float64, error) {
		if ps.Len() == 0 {
			return 0, geometry.ErrEmptyPointSet
		}
		return -float64(ps.Len()), nil
	}}
	// Smallest prefers the candidate with the fewest points.
	Smallest Criterion = CriterionFunc{Label: "smallest", Fn: func(ps geometry.PointSet) (float64, error) {
		if ps.Len() == 0 {
			return 0, geometry.ErrEmptyPointSet
		}
		return float64(ps.Len()), nil
	}}
)

// NearestTo prefers the candidate whose centroid is closest to ref.
func NearestTo(ref r3.Vector) Criterion {
	return CriterionFunc{
		Label: fmt.Sprintf("nearest to (%g, %g, %g)", ref.X, ref.Y, ref.Z),
		Fn: func(ps geometry.PointSet) (float64, error) {
			c, err := geometry.Centroid(ps)
			if err != nil {
				return 0, err
			}
			return c.Distance(ref), nil
		},
	}
}

// FarthestFrom prefers the candidate whose centroid is farthest from ref.
func FarthestFrom(ref r3.Vector) Criterion {
	return CriterionFunc{
		Label: fmt.Sprintf("farthest from (%g, %g, %g)", ref.X, ref.Y, ref.Z),
		Fn: func(ps geometry.PointSet) (float64, error) {
			c, err := geometry.Centroid(ps)
			if err != nil {
				return 0, err
			}
			return -c.Distance(ref), nil
		},
	}
}

var criterionWords = map[string]Criterion{
	"left":      Leftmost,
	"leftmost":  Leftmost,
	"right":     Rightmost,
	"rightmost": Rightmost,
	"front":     Front,
	"frontmost": Front,
	"back":      Back,
	"rear":      Back,
	"bottom":    Lowest,
	"lowest":    Lowest,
	"lower":     Lowest,
	"top":       Highest,
	"highest":   Highest,
	"upper":     Highest,
	"largest":   Largest,
	"biggest":   Largest,
	"smallest":  Smallest,
}

// ParseCriterion maps a spatial word to a criterion. "nearest"/"closest" and
// "farthest" are measured from ref (the origin when the caller has nothing
// better).
func ParseCriterion(word string, ref r3.Vector) (Criterion, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	switch w {
	case "nearest", "closest":
		return NearestTo(ref), true
	case "farthest", "furthest":
		return FarthestFrom(ref), true
	}
	c, ok := criterionWords[w]
	return c, ok
}

// IsCriterionWord reports whether word names a criterion.
func IsCriterionWord(word string) bool {
	_, ok := ParseCriterion(word, r3.Vector{})
	return ok
}
