package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

var (
	// ErrNothingToRender is returned when no layer has points.
	ErrNothingToRender = errors.New("nothing to render")

	// ErrInvalidOptions is returned for a size, splat or grid outside the
	// supported limits.
	ErrInvalidOptions = errors.New("invalid render options")
)

// DefaultSize is the default edge length of a projection in pixels.
const DefaultSize = 512

// Limits on ProjectionOptions.
const (
	MinSize      = 16
	MaxSize      = 4096
	MaxSplat     = 32
	MaxGridLines = 200
)

// supersample is the factor the canvas is drawn at before being scaled down.
const supersample = 2

// View is an orthographic viewing direction.
type View string

const (
	ViewTop   View = "top"   // looking down -Z: X right, Y up
	ViewFront View = "front" // looking along +Y: X right, Z up
	ViewSide  View = "side"  // looking along -X: Y right, Z up
)

// ParseView accepts "top", "front" or "side"; "" means top.
func ParseView(s string) (View, error) {
	switch View(s) {
	case "", ViewTop:
		return ViewTop, nil
	case ViewFront, ViewSide:
		return View(s), nil
	default:
		return "", fmt.Errorf("unknown view %q (want top, front or side)", s)
	}
}

// axes returns the world axes mapped to image right and image up.
func (v View) axes() (geometry.Axis, geometry.Axis) {
	switch v {
	case ViewFront:
		return geometry.AxisX, geometry.AxisZ
	case ViewSide:
		return geometry.AxisY, geometry.AxisZ
	default:
		return geometry.AxisX, geometry.AxisY
	}
}

// Layer is a named point set drawn in one color.
type Layer struct {
	Name string
	Set  geometry.PointSet
}

// ProjectionOptions controls Projection.
type ProjectionOptions struct {
	View View

	// Size is the output edge length in pixels. Zero means DefaultSize.
	Size int

	// Splat is the Gaussian radius, in output pixels, used to soften points.
	// Zero draws hard points.
	Splat float64

	// GridSpacing draws a world-unit grid every GridSpacing units when > 0.
	GridSpacing float64

	// GridLabels prints the world coordinates at grid intersections.
	GridLabels bool

	// GridColor is "#RRGGBB"; defaults to gray.
	GridColor string

	// Background is "#RRGGBB"; defaults to white.
	Background string
}

// ProjectionResult contains the rendered image data.
type ProjectionResult struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	ImageBase64   string  `json:"image_base64"`
	MimeType      string  `json:"mime_type"`
	View          View    `json:"view"`
	PixelsPerUnit float64 `json:"pixels_per_unit"`
	Origin        Vec2    `json:"origin"`
	Legend        []Entry `json:"legend"`
}

// Vec2 is a point in the view plane.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Entry maps a layer name to the color it was drawn in.
type Entry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LayerColors returns n well separated colors.
func LayerColors(n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		out[i] = colorful.Hsv(math.Mod(float64(i)*137.508, 360), 0.75, 0.85)
	}
	return out
}

// Projection draws layers orthographically onto a square PNG.
//
// Points keep their own colors when the set carries them; otherwise each
// layer gets one of LayerColors. The view is framed on the union of all
// layers with a small margin, equal scale on both image axes.
func Projection(layers []Layer, o ProjectionOptions) (*ProjectionResult, error) {
	view, err := ParseView(string(o.View))
	if err != nil {
		return nil, err
	}
	size := o.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return nil, fmt.Errorf("%w: size must be between %d and %d, got %d", ErrInvalidOptions, MinSize, MaxSize, size)
	}
	if o.Splat < 0 || o.Splat > MaxSplat {
		return nil, fmt.Errorf("%w: splat must be between 0 and %d, got %g", ErrInvalidOptions, MaxSplat, o.Splat)
	}

	sets := make([]geometry.PointSet, 0, len(layers))
	for _, l := range layers {
		if l.Set.Len() > 0 {
			sets = append(sets, l.Set)
		}
	}
	if len(sets) == 0 {
		return nil, ErrNothingToRender
	}
	bounds, err := geometry.BoundsOf(sets...)
	if err != nil {
		return nil, err
	}

	uAxis, vAxis := view.axes()
	f := newFrame(bounds, uAxis, vAxis, size*supersample)
	if o.GridSpacing > 0 {
		if lines := float64(f.px) / f.scale / o.GridSpacing; lines > MaxGridLines {
			return nil, fmt.Errorf("%w: grid spacing %g gives %.0f lines per axis, limit %d", ErrInvalidOptions, o.GridSpacing, lines, MaxGridLines)
		}
	}

	bg := parseHexColor(o.Background, color.RGBA{255, 255, 255, 255})
	canvas := image.NewRGBA(image.Rect(0, 0, f.px, f.px))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	// Points are drawn on a transparent layer so the splat does not wash
	// out the background.
	dots := image.NewRGBA(canvas.Bounds())
	palette := LayerColors(len(layers))
	legend := make([]Entry, 0, len(layers))
	for i, l := range layers {
		if l.Set.Len() == 0 {
			continue
		}
		fallback := toRGBA(palette[i])
		legend = append(legend, Entry{Name: l.Name, Color: palette[i].Hex()})
		for j, p := range l.Set.Points {
			c := fallback
			if l.Set.HasColors() {
				c = l.Set.Colors[j]
				c.A = 255
			}
			x, y := f.pixel(p)
			fillDot(dots, x, y, supersample, c)
		}
	}

	if o.Splat > 0 {
		dots = blur.Gaussian(dots, o.Splat*supersample)
	}
	draw.Draw(canvas, canvas.Bounds(), dots, image.Point{}, draw.Over)

	// Drawn with +v toward larger row indices; flip so up is up.
	var img image.Image = imaging.FlipV(canvas)
	img = imaging.Resize(img, size, size, imaging.Lanczos)

	if o.GridSpacing > 0 {
		out := image.NewNRGBA(img.Bounds())
		draw.Draw(out, out.Bounds(), img, image.Point{}, draw.Src)
		f.drawGrid(out, size, o.GridSpacing, o.GridLabels, parseHexColor(o.GridColor, color.RGBA{128, 128, 128, 160}))
		img = out
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode projection: %w", err)
	}

	return &ProjectionResult{
		Width:         size,
		Height:        size,
		ImageBase64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:      "image/png",
		View:          view,
		PixelsPerUnit: f.scale / supersample,
		Origin:        Vec2{X: f.u0, Y: f.v0},
		Legend:        legend,
	}, nil
}

// frame maps world coordinates onto a square canvas of px pixels.
type frame struct {
	u, v   geometry.Axis
	u0, v0 float64 // world coordinates of the canvas origin
	scale  float64 // canvas pixels per world unit
	px     int
}

func newFrame(b geometry.Bounds, u, v geometry.Axis, px int) frame {
	size := b.Size()
	du, dv := geometry.Component(size, u), geometry.Component(size, v)
	extent := math.Max(du, dv)
	if extent == 0 {
		extent = 1
	}
	extent *= 1.1

	cu := (geometry.Component(b.Min, u) + geometry.Component(b.Max, u)) / 2
	cv := (geometry.Component(b.Min, v) + geometry.Component(b.Max, v)) / 2
	return frame{
		u:     u,
		v:     v,
		u0:    cu - extent/2,
		v0:    cv - extent/2,
		scale: float64(px) / extent,
		px:    px,
	}
}

// pixel returns canvas coordinates with +v toward larger rows.
func (f frame) pixel(p r3.Vector) (int, int) {
	x := int((geometry.Component(p, f.u) - f.u0) * f.scale)
	y := int((geometry.Component(p, f.v) - f.v0) * f.scale)
	return clamp(x, 0, f.px-1), clamp(y, 0, f.px-1)
}

// drawGrid draws world-unit grid lines on the flipped, resized image, whose
// rows grow downward and whose edge is size pixels.
func (f frame) drawGrid(img *image.NRGBA, size int, spacing float64, labels bool, c color.RGBA) {
	scale := f.scale / supersample
	extent := float64(size) / scale

	start := math.Ceil(f.u0/spacing) * spacing
	for w := start; w < f.u0+extent; w += spacing {
		x := int((w - f.u0) * scale)
		for y := 0; y < size; y++ {
			img.Set(x, y, c)
		}
	}
	start = math.Ceil(f.v0/spacing) * spacing
	for w := start; w < f.v0+extent; w += spacing {
		y := size - 1 - int((w-f.v0)*scale)
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}

	if !labels {
		return
	}
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 180}
	for wu := math.Ceil(f.u0/spacing) * spacing; wu < f.u0+extent; wu += spacing {
		for wv := math.Ceil(f.v0/spacing) * spacing; wv < f.v0+extent; wv += spacing {
			x := int((wu - f.u0) * scale)
			y := size - 1 - int((wv-f.v0)*scale)
			drawLabel(img, x+2, y+2, fmt.Sprintf("%.1f,%.1f", wu, wv), fg, bg)
		}
	}
}

func fillDot(img *image.RGBA, x, y, r int, c color.RGBA) {
	b := img.Bounds()
	for dy := 0; dy < r; dy++ {
		for dx := 0; dx < r; dx++ {
			if image.Pt(x+dx, y+dy).In(b) {
				img.SetRGBA(x+dx, y+dy, c)
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// parseHexColor parses "#RRGGBB", returning def for an empty or malformed
// string. def's alpha is kept.
func parseHexColor(hex string, def color.RGBA) color.RGBA {
	if hex == "" {
		return def
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return def
	}
	out := toRGBA(c)
	out.A = def.A
	return out
}

// drawLabel draws text in a 3x5 pixel font at the given position.
func drawLabel(img draw.Image, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
		'.': {"000", "000", "000", "000", "010"},
		'-': {"000", "000", "111", "000", "000"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			if p := image.Pt(x+dx, y+dy); p.In(bounds) {
				img.Set(p.X, p.Y, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				if p := image.Pt(cx+col, y+row); p.In(bounds) {
					img.Set(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}
