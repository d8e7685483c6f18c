package detection

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// ErrUnknownShape is returned by Generate for an unsupported shape name.
var ErrUnknownShape = errors.New("unknown shape")

// DefaultShapePoints is the sample count used when none is requested.
const DefaultShapePoints = 1000

type shapeFunc func(n int, rng *rand.Rand) geometry.PointSet

var shapes = map[string]shapeFunc{
	"sphere":   GenerateSphere,
	"cube":     GenerateCube,
	"torus":    GenerateTorus,
	"cylinder": GenerateCylinder,
	"pyramid":  GeneratePyramid,
}

// Shapes returns the supported shape names in sorted order.
func Shapes() []string {
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate samples n points of the named shape with a seeded generator, so
// the same (shape, n, seed) always yields the same point set.
func Generate(shape string, n int, seed uint64) (geometry.PointSet, error) {
	fn, ok := shapes[Normalize(shape)]
	if !ok {
		return geometry.PointSet{}, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
	if n <= 0 {
		n = DefaultShapePoints
	}
	return fn(n, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))), nil
}

// GenerateSphere samples the surface of the unit sphere.
func GenerateSphere(n int, rng *rand.Rand) geometry.PointSet {
	points := make([]r3.Vector, n)
	for i := range points {
		theta := rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*rng.Float64() - 1)
		points[i] = r3.Vector{
			X: math.Sin(phi) * math.Cos(theta),
			Y: math.Sin(phi) * math.Sin(theta),
			Z: math.Cos(phi),
		}
	}
	return geometry.NewPointSet(points...)
}

// GenerateCube samples the volume of the cube [-1, 1]^3.
func GenerateCube(n int, rng *rand.Rand) geometry.PointSet {
	points := make([]r3.Vector, n)
	for i := range points {
		points[i] = r3.Vector{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}
	}
	return geometry.NewPointSet(points...)
}

// GenerateTorus samples a torus with major radius 1 and minor radius 0.3
// lying in the XY plane.
func GenerateTorus(n int, rng *rand.Rand) geometry.PointSet {
	const major, minor = 1.0, 0.3
	points := make([]r3.Vector, n)
	for i := range points {
		theta := rng.Float64() * 2 * math.Pi
		phi := rng.Float64() * 2 * math.Pi
		points[i] = r3.Vector{
			X: (major + minor*math.Cos(phi)) * math.Cos(theta),
			Y: (major + minor*math.Cos(phi)) * math.Sin(theta),
			Z: minor * math.Sin(phi),
		}
	}
	return geometry.NewPointSet(points...)
}

// GenerateCylinder samples the side of a cylinder of radius 0.5 and height 2
// centered on the origin with its axis along Z.
func GenerateCylinder(n int, rng *rand.Rand) geometry.PointSet {
	const height, radius = 2.0, 0.5
	points := make([]r3.Vector, n)
	for i := range points {
		theta := rng.Float64() * 2 * math.Pi
		points[i] = r3.Vector{
			X: radius * math.Cos(theta),
			Y: radius * math.Sin(theta),
			Z: rng.Float64()*height - height/2,
		}
	}
	return geometry.NewPointSet(points...)
}

// GeneratePyramid samples a square pyramid of base 2 standing on Z = 0;
// the height of each sample shrinks with its distance from the center.
func GeneratePyramid(n int, rng *rand.Rand) geometry.PointSet {
	const size = 2.0
	points := make([]r3.Vector, n)
	for i := range points {
		x := rng.Float64()*size - size/2
		y := rng.Float64()*size - size/2
		z := rng.Float64() * size
		scale := 1 - math.Sqrt(x*x+y*y)/(size/2)
		points[i] = r3.Vector{X: x, Y: y, Z: z * scale}
	}
	return geometry.NewPointSet(points...)
}

// DemoScene returns a deterministic tabletop: a red and a blue mug, and three
// branches whose centroids sit near x = 3, 1 and 2.
func DemoScene() *Scene {
	rng := rand.New(rand.NewPCG(7, 11))

	mug := func(at r3.Vector, c color.RGBA) geometry.PointSet {
		return GenerateCylinder(200, rng).Scale(0.1).Translate(at).WithColor(c)
	}
	branch := func(x float64) geometry.PointSet {
		// Long thin cylinder, tipped over so it lies along Y.
		ps := GenerateCylinder(150, rng)
		for i, p := range ps.Points {
			ps.Points[i] = r3.Vector{X: p.X * 0.1, Y: p.Z * 0.5, Z: p.Y * 0.1}
		}
		return ps.Translate(r3.Vector{X: x, Y: 1, Z: 1.5}).WithColor(color.RGBA{140, 86, 75, 255})
	}

	s, err := NewScene("demo",
		Object{Category: "mug", Instance: "red mug", Geometry: mug(r3.Vector{X: -0.3, Y: 0.5, Z: 0.1}, color.RGBA{214, 39, 40, 255})},
		Object{Category: "mug", Instance: "blue mug", Geometry: mug(r3.Vector{X: 0.4, Y: 0.6, Z: 0.1}, color.RGBA{31, 95, 214, 255})},
		Object{Category: "branch", Geometry: branch(3)},
		Object{Category: "branch", Geometry: branch(1)},
		Object{Category: "branch", Geometry: branch(2)},
	)
	if err != nil {
		panic(fmt.Sprintf("demo scene: %v", err))
	}
	return s
}
