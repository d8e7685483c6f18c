package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyPointSet is returned when an operation needs at least one point.
var ErrEmptyPointSet = errors.New("empty point set")

// Axis selects one coordinate of a point.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns the lower-case axis name.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// Component returns the coordinate of v along axis.
func Component(v r3.Vector, axis Axis) float64 {
	switch axis {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

// PointSet is the ordered geometry observed for one detected instance.
//
// Colors is optional. When present it runs parallel to Points, one color per
// point; a PointSet whose Colors length differs from Points is invalid.
type PointSet struct {
	Points []r3.Vector
	Colors []color.RGBA
}

// NewPointSet builds an uncolored point set from the given points.
func NewPointSet(points ...r3.Vector) PointSet {
	return PointSet{Points: points}
}

// Len returns the number of points.
func (ps PointSet) Len() int {
	return len(ps.Points)
}

// HasColors reports whether every point carries a color.
func (ps PointSet) HasColors() bool {
	return len(ps.Points) > 0 && len(ps.Colors) == len(ps.Points)
}

// Validate checks the point set is non-empty, finite, and its colors line up.
func (ps PointSet) Validate() error {
	if len(ps.Points) == 0 {
		return ErrEmptyPointSet
	}
	if len(ps.Colors) != 0 && len(ps.Colors) != len(ps.Points) {
		return fmt.Errorf("point set has %d colors for %d points", len(ps.Colors), len(ps.Points))
	}
	for i, p := range ps.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("point %d is not finite: %v", i, p)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (ps PointSet) Clone() PointSet {
	out := PointSet{Points: append([]r3.Vector(nil), ps.Points...)}
	if len(ps.Colors) > 0 {
		out.Colors = append([]color.RGBA(nil), ps.Colors...)
	}
	return out
}

// Translate returns a copy shifted by offset.
func (ps PointSet) Translate(offset r3.Vector) PointSet {
	out := ps.Clone()
	for i := range out.Points {
		out.Points[i] = out.Points[i].Add(offset)
	}
	return out
}

// Scale returns a copy with every coordinate multiplied by s.
func (ps PointSet) Scale(s float64) PointSet {
	out := ps.Clone()
	for i := range out.Points {
		out.Points[i] = out.Points[i].Mul(s)
	}
	return out
}

// WithColor returns a copy where every point has color c.
func (ps PointSet) WithColor(c color.RGBA) PointSet {
	out := ps.Clone()
	out.Colors = make([]color.RGBA, len(out.Points))
	for i := range out.Colors {
		out.Colors[i] = c
	}
	return out
}

// Axis returns the coordinates of every point along axis, in point order.
func (ps PointSet) Axis(axis Axis) []float64 {
	vals := make([]float64, len(ps.Points))
	for i, p := range ps.Points {
		vals[i] = Component(p, axis)
	}
	return vals
}

// Centroid returns the elementwise mean of the point coordinates.
func Centroid(ps PointSet) (r3.Vector, error) {
	if len(ps.Points) == 0 {
		return r3.Vector{}, ErrEmptyPointSet
	}
	return r3.Vector{
		X: stat.Mean(ps.Axis(AxisX), nil),
		Y: stat.Mean(ps.Axis(AxisY), nil),
		Z: stat.Mean(ps.Axis(AxisZ), nil),
	}, nil
}

// Centroids returns the centroid of each set, failing on the first empty one.
func Centroids(sets []PointSet) ([]r3.Vector, error) {
	out := make([]r3.Vector, len(sets))
	for i, ps := range sets {
		c, err := Centroid(ps)
		if err != nil {
			return nil, fmt.Errorf("point set %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// Bounds is an axis-aligned box enclosing a point set.
type Bounds struct {
	Min r3.Vector
	Max r3.Vector
}

// Size returns the extent along each axis.
func (b Bounds) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// BoundsOf returns the axis-aligned bounds of the given sets combined.
func BoundsOf(sets ...PointSet) (Bounds, error) {
	var b Bounds
	seen := false
	for _, ps := range sets {
		for _, p := range ps.Points {
			if !seen {
				b = Bounds{Min: p, Max: p}
				seen = true
				continue
			}
			b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
			b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
		}
	}
	if !seen {
		return Bounds{}, ErrEmptyPointSet
	}
	return b, nil
}

// MeanColor returns the average color of a colored point set.
// The boolean is false when the set carries no colors.
func MeanColor(ps PointSet) (colorful.Color, bool) {
	if !ps.HasColors() {
		return colorful.Color{}, false
	}
	var r, g, b float64
	for _, c := range ps.Colors {
		r += float64(c.R)
		g += float64(c.G)
		b += float64(c.B)
	}
	n := float64(len(ps.Colors)) * 255
	return colorful.Color{R: r / n, G: g / n, B: b / n}, true
}

type pointSetJSON struct {
	Points [][]float64 `json:"points"`
	Colors []string    `json:"colors,omitempty"`
}

// MarshalJSON encodes points as [x, y, z] triples and colors as "#rrggbb".
func (ps PointSet) MarshalJSON() ([]byte, error) {
	out := pointSetJSON{Points: make([][]float64, len(ps.Points))}
	for i, p := range ps.Points {
		out.Points[i] = []float64{p.X, p.Y, p.Z}
	}
	if len(ps.Colors) > 0 {
		out.Colors = make([]string, len(ps.Colors))
		for i, c := range ps.Colors {
			out.Colors[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts [x, y] or [x, y, z] points; 2D points get Z = 0.
func (ps *PointSet) UnmarshalJSON(data []byte) error {
	var in pointSetJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	points := make([]r3.Vector, len(in.Points))
	for i, p := range in.Points {
		switch len(p) {
		case 2:
			points[i] = r3.Vector{X: p[0], Y: p[1]}
		case 3:
			points[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
		default:
			return fmt.Errorf("point %d has %d coordinates, want 2 or 3", i, len(p))
		}
	}
	var colors []color.RGBA
	if len(in.Colors) > 0 {
		colors = make([]color.RGBA, len(in.Colors))
		for i, hex := range in.Colors {
			c, err := colorful.Hex(hex)
			if err != nil {
				return fmt.Errorf("color %d: %w", i, err)
			}
			r, g, b := c.RGB255()
			colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
		}
	}
	ps.Points = points
	ps.Colors = colors
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
