// Package compose resolves symbolic target references to detected point sets
// and assembles them into a role mapping.
//
// A reference is parsed into a Query with one of three strategies:
//
//	"mug"          first     Detect("mug")[0]
//	"blue mug"     named     Detect("mug")[FindInstanceInCategory("blue mug", "mug")]
//	"left branch"  geometric argmin of centroid x over Detect("branch")
//
// A Composer runs queries against a detection.Detector and
// detection.InstanceResolver. Compose takes a list of role/query targets and
// returns an Output holding exactly those roles. A target with no detections
// fails with ErrNotFound and the whole composition returns nothing.
package compose
