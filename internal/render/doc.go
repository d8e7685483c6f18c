// Package render draws point sets for people to look at.
//
// Projection rasterizes layers orthographically from the top, front or side
// into a base64 PNG, the same result shape the image tools return for crops.
// Points are softened with a Gaussian splat and an optional world-unit grid
// can be overlaid.
//
// Scatter3D writes a self-contained ECharts HTML page with a rotatable 3D
// scatter, one series per layer, colored by height.
package render
