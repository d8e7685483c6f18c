package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// ErrNotFound is returned when no detected instance matches a request.
var ErrNotFound = errors.New("not found")

// Detector answers "what is there that looks like label".
//
// Detect returns one point set per detected instance, in a stable order.
// An unknown label yields an empty slice and a nil error; deciding whether
// absence is a failure belongs to the caller.
type Detector interface {
	Detect(ctx context.Context, label string) ([]geometry.PointSet, error)
}

// InstanceResolver locates a named instance among the detections of a
// category. The returned index refers to the slice Detect(category) returns.
type InstanceResolver interface {
	FindInstanceInCategory(ctx context.Context, instance, category string) (int, error)
}

// Backend is a complete detection source.
type Backend interface {
	Detector
	InstanceResolver
	Categories(ctx context.Context) ([]string, error)
}

// Normalize lower-cases a label and collapses its whitespace so that
// "Blue  Mug" and "blue mug" name the same thing.
func Normalize(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// Object is one physical instance recorded in a scene.
type Object struct {
	// ID is assigned by persistent stores; empty for in-memory scenes.
	ID string `json:"id,omitempty"`

	// Category is the class of the object, e.g. "mug".
	Category string `json:"category"`

	// Instance optionally names this particular object, e.g. "blue mug".
	Instance string `json:"instance,omitempty"`

	// Geometry is the observed point set. It must be non-empty.
	Geometry geometry.PointSet `json:"geometry"`
}

func (o Object) normalized() (Object, error) {
	o.Category = Normalize(o.Category)
	o.Instance = Normalize(o.Instance)
	if o.Category == "" {
		return o, errors.New("object has no category")
	}
	if err := o.Geometry.Validate(); err != nil {
		return o, fmt.Errorf("object %q: %w", o.label(), err)
	}
	return o, nil
}

func (o Object) label() string {
	if o.Instance != "" {
		return o.Instance
	}
	return o.Category
}

// Scene is an in-memory Backend over a fixed list of objects.
// It is immutable after construction and safe for concurrent use.
type Scene struct {
	Name    string
	objects []Object
	colors  *ColorResolver
}

// NewScene validates and normalizes objects into a scene. Object order is
// preserved and defines detection order.
func NewScene(name string, objects ...Object) (*Scene, error) {
	s := &Scene{
		Name:    name,
		objects: make([]Object, 0, len(objects)),
		colors:  NewColorResolver(DefaultMaxColorDistance),
	}
	for i, o := range objects {
		n, err := o.normalized()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		s.objects = append(s.objects, n)
	}
	return s, nil
}

// SetColorResolver replaces the resolver used when no descriptor matches.
func (s *Scene) SetColorResolver(r *ColorResolver) {
	s.colors = r
}

// Objects returns a copy of the scene's objects.
func (s *Scene) Objects() []Object {
	out := make([]Object, len(s.objects))
	for i, o := range s.objects {
		o.Geometry = o.Geometry.Clone()
		out[i] = o
	}
	return out
}

// Detect returns every object of category label or, when label is not a
// category, every object whose instance descriptor equals label.
func (s *Scene) Detect(ctx context.Context, label string) ([]geometry.PointSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return matchLabel(s.objects, Normalize(label)), nil
}

// FindInstanceInCategory returns the index of instance within Detect(category).
func (s *Scene) FindInstanceInCategory(ctx context.Context, instance, category string) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return findInstance(byCategory(s.objects, Normalize(category)), s.colors, instance, category)
}

// Categories returns the distinct categories in sorted order.
func (s *Scene) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, o := range s.objects {
		seen[o.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func byCategory(objects []Object, category string) []Object {
	var out []Object
	for _, o := range objects {
		if o.Category == category {
			out = append(out, o)
		}
	}
	return out
}

func matchLabel(objects []Object, label string) []geometry.PointSet {
	matches := byCategory(objects, label)
	if len(matches) == 0 {
		for _, o := range objects {
			if o.Instance != "" && o.Instance == label {
				matches = append(matches, o)
			}
		}
	}
	sets := make([]geometry.PointSet, len(matches))
	for i, o := range matches {
		sets[i] = o.Geometry.Clone()
	}
	return sets
}

// findInstance implements the shared lookup: exact descriptor match first,
// then color resolution over the category's geometry.
func findInstance(candidates []Object, colors *ColorResolver, instance, category string) (int, error) {
	want := Normalize(instance)
	if len(candidates) == 0 {
		return -1, fmt.Errorf("no %q detected: %w", Normalize(category), ErrNotFound)
	}
	for i, o := range candidates {
		if o.Instance == want {
			return i, nil
		}
	}
	if colors != nil {
		sets := make([]geometry.PointSet, len(candidates))
		for i, o := range candidates {
			sets[i] = o.Geometry
		}
		if idx, err := colors.Resolve(want, sets); err == nil {
			return idx, nil
		}
	}
	return -1, fmt.Errorf("instance %q in category %q: %w", want, Normalize(category), ErrNotFound)
}

// sceneFile is the on-disk JSON scene format.
type sceneFile struct {
	Name    string   `json:"name"`
	Objects []Object `json:"objects"`
}

// LoadSceneFile reads a JSON scene:
//
//	{"name": "tabletop", "objects": [
//	  {"category": "mug", "instance": "blue mug", "geometry": {"points": [[0.1, 0.2, 0.0]]}}
//	]}
func LoadSceneFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene: %w", err)
	}
	var f sceneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	return NewScene(f.Name, f.Objects...)
}

// WriteSceneFile stores a scene in the format LoadSceneFile reads.
func WriteSceneFile(path string, s *Scene) error {
	data, err := json.MarshalIndent(sceneFile{Name: s.Name, Objects: s.objects}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scene: %w", err)
	}
	return nil
}
