// Package detection provides the object-detection capability the composer
// consumes.
//
// The composer never looks inside a detection model. It depends on two small
// interfaces:
//
//   - Detector: Detect(label) returns one point set per detected instance
//   - InstanceResolver: FindInstanceInCategory(instance, category) returns the
//     index of a named instance within Detect(category)
//
// Backend bundles both with Categories and is what the servers load.
//
// # Backends
//
// Two implementations are provided:
//
//   - Scene: an immutable in-memory list of objects, built in code or read
//     from a JSON scene file
//   - Store: the same lookups over objects persisted in SQLite, one named
//     scene per Store
//
// SceneCache resolves scene references ("demo", "x.json", "x.db#name") to
// backends and keeps them open between calls.
//
// # Label Matching
//
// Labels are compared after Normalize (lower case, collapsed whitespace).
// Detect treats its label as a category first; only when no object has that
// category does it match instance descriptors, so Detect("blue mug") finds
// the object described as "blue mug" while Detect("mug") finds every mug.
//
// # Instance Resolution
//
// FindInstanceInCategory looks for an exact descriptor match among the
// category's objects. When none matches and the descriptor contains a color
// word ("blue", "red", ...), the candidate whose mean point color is nearest
// in CIEDE2000 distance is chosen, provided it is within the resolver's
// MaxDistance. Anything else is ErrNotFound.
//
// # Ordering
//
// Detection order is object order in the scene (insertion order for Store).
// It is stable across calls, which keeps index-based resolution and
// first-occurrence tie breaking reproducible.
//
// # Synthetic Shapes
//
// Generate produces seeded samples of a sphere, cube, torus, cylinder or
// pyramid. DemoScene uses them to build a small tabletop with two mugs and
// three branches.
package detection
