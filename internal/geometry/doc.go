// Package geometry holds the point set type shared by detection, selection
// and composition, together with the reductions computed over it.
//
// # Coordinate System
//
// Points are r3.Vector values in the robot's world frame:
//   - X increases to the right (so "leftmost" means smallest X)
//   - Y increases away from the viewer
//   - Z increases upward
//
// Two-dimensional inputs are accepted and stored with Z = 0.
//
// # Reductions
//
// The centroid of a point set is the elementwise mean of its coordinates.
// It is the representative location used by every geometric selection
// criterion. Reductions over an empty set return ErrEmptyPointSet instead of
// producing NaN values.
package geometry
