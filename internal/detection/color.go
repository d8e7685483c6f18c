package detection

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// DefaultMaxColorDistance is the largest CIEDE2000 distance (go-colorful's
// 0-1 scale) at which a candidate still counts as the named color.
const DefaultMaxColorDistance = 0.3

// palette maps color words to reference colors.
var palette = map[string]colorful.Color{
	"red":    mustHex("#d62728"),
	"orange": mustHex("#ff7f0e"),
	"yellow": mustHex("#f5d416"),
	"green":  mustHex("#2ca02c"),
	"blue":   mustHex("#1f5fd6"),
	"purple": mustHex("#8a3fbf"),
	"pink":   mustHex("#f27eb4"),
	"brown":  mustHex("#8c564b"),
	"black":  mustHex("#111111"),
	"white":  mustHex("#f5f5f5"),
	"gray":   mustHex("#7f7f7f"),
	"grey":   mustHex("#7f7f7f"),
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("bad palette color %s: %v", s, err))
	}
	return c
}

// PaletteColor returns the reference color for a color word.
func PaletteColor(word string) (colorful.Color, bool) {
	c, ok := palette[strings.ToLower(word)]
	return c, ok
}

// ColorWord finds the first palette word in a descriptor such as "blue mug".
func ColorWord(descriptor string) (string, colorful.Color, bool) {
	for _, w := range strings.Fields(Normalize(descriptor)) {
		if c, ok := palette[w]; ok {
			return w, c, true
		}
	}
	return "", colorful.Color{}, false
}

// ColorResolver picks the candidate whose mean point color is closest to the
// color named in an instance descriptor.
type ColorResolver struct {
	// MaxDistance rejects candidates farther than this from the named color.
	MaxDistance float64
}

// NewColorResolver returns a resolver; a non-positive maxDistance selects
// DefaultMaxColorDistance.
func NewColorResolver(maxDistance float64) *ColorResolver {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxColorDistance
	}
	return &ColorResolver{MaxDistance: maxDistance}
}

// Resolve returns the index of the best color match for descriptor.
// Uncolored candidates are skipped; equal distances keep the earlier index.
func (r *ColorResolver) Resolve(descriptor string, candidates []geometry.PointSet) (int, error) {
	word, want, ok := ColorWord(descriptor)
	if !ok {
		return -1, fmt.Errorf("no color word in %q: %w", descriptor, ErrNotFound)
	}

	best := -1
	bestDist := 0.0
	for i, ps := range candidates {
		mean, ok := geometry.MeanColor(ps)
		if !ok {
			continue
		}
		d := mean.DistanceCIEDE2000(want)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}

	if best == -1 || bestDist > r.MaxDistance {
		return -1, fmt.Errorf("no %s candidate: %w", word, ErrNotFound)
	}
	return best, nil
}
