package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
)

// Vec3 is the JSON form of a coordinate.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ToVec3 converts an r3.Vector for encoding.
func ToVec3(v r3.Vector) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// DistanceResult contains measurement information between two point sets
type DistanceResult struct {
	Distance        float64 `json:"distance"`
	Delta           Vec3    `json:"delta"`
	CentroidA       Vec3    `json:"centroid_a"`
	CentroidB       Vec3    `json:"centroid_b"`
	AzimuthDegrees  float64 `json:"azimuth_degrees"`
	ElevationDegree float64 `json:"elevation_degrees"`
}

// MeasureDistance calculates the distance between the centroids of a and b
func MeasureDistance(a, b PointSet) (*DistanceResult, error) {
	ca, err := Centroid(a)
	if err != nil {
		return nil, err
	}
	cb, err := Centroid(b)
	if err != nil {
		return nil, err
	}

	delta := cb.Sub(ca)
	distance := delta.Norm()

	// Azimuth in the XY plane (0 = +X, 90 = +Y), elevation above that plane
	azimuth := math.Atan2(delta.Y, delta.X) * 180 / math.Pi
	elevation := math.Atan2(delta.Z, math.Hypot(delta.X, delta.Y)) * 180 / math.Pi

	return &DistanceResult{
		Distance:        round(distance, 4),
		Delta:           Vec3{X: round(delta.X, 4), Y: round(delta.Y, 4), Z: round(delta.Z, 4)},
		CentroidA:       roundVec(ca),
		CentroidB:       roundVec(cb),
		AzimuthDegrees:  round(azimuth, 1),
		ElevationDegree: round(elevation, 1),
	}, nil
}

// AlignmentResult contains alignment check information
type AlignmentResult struct {
	AlignedX bool    `json:"aligned_x"`
	AlignedY bool    `json:"aligned_y"`
	AlignedZ bool    `json:"aligned_z"`
	SpreadX  float64 `json:"spread_x"`
	SpreadY  float64 `json:"spread_y"`
	SpreadZ  float64 `json:"spread_z"`
	Average  Vec3    `json:"average"`
}

// CheckAlignment reports, per axis, whether the points share a coordinate
// within tolerance (population standard deviation).
func CheckAlignment(points []r3.Vector, tolerance float64) *AlignmentResult {
	if len(points) < 2 {
		res := &AlignmentResult{AlignedX: true, AlignedY: true, AlignedZ: true}
		if len(points) == 1 {
			res.Average = roundVec(points[0])
		}
		return res
	}

	coords := func(axis Axis) []float64 {
		out := make([]float64, len(points))
		for i, p := range points {
			out[i] = Component(p, axis)
		}
		return out
	}
	// Rounding can leave a variance a hair below zero for equal coordinates.
	spread := func(axis Axis) (float64, float64) {
		m, v := stat.PopMeanVariance(coords(axis), nil)
		return m, math.Sqrt(math.Max(v, 0))
	}
	mx, sx := spread(AxisX)
	my, sy := spread(AxisY)
	mz, sz := spread(AxisZ)
	avg := r3.Vector{X: mx, Y: my, Z: mz}

	return &AlignmentResult{
		AlignedX: sx <= tolerance,
		AlignedY: sy <= tolerance,
		AlignedZ: sz <= tolerance,
		SpreadX:  round(sx, 4),
		SpreadY:  round(sy, 4),
		SpreadZ:  round(sz, 4),
		Average:  roundVec(avg),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundVec(v r3.Vector) Vec3 {
	return Vec3{X: round(v.X, 4), Y: round(v.Y, 4), Z: round(v.Z, 4)}
}
