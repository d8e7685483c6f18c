// Package server implements the MCP (Model Context Protocol) server for scene
// composition tools.
//
// This package provides a JSON-RPC 2.0 server that lets an MCP client resolve
// symbolic object references ("blue mug", "left branch") against a scene and
// receive the selected point sets.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Scene Information:
//   - scene_load: Load a scene, list categories and counts
//   - scene_categories: List categories
//
// Detection:
//   - scene_detect: Point sets and centroids for a label
//   - scene_find_instance: Resolve a named instance within its category
//
// Selection and Composition:
//   - scene_select: Pick one instance by a geometric criterion
//   - scene_compose: Resolve several targets into a role mapping
//
// Measurement:
//   - scene_measure: Distance and direction between two targets
//   - scene_check_alignment: Axis alignment of several targets
//
// Synthetic Data and Rendering:
//   - scene_generate: Sample a sphere, cube, torus, cylinder or pyramid
//   - scene_render: PNG projection or HTML 3D scatter of composed targets
//
// # Target Queries
//
// Tools that take targets accept the query forms understood by
// compose.ParseQuery: "mug" (first detection), "blue mug" (named instance),
// "left branch" (geometric), and the explicit "first:", "named:" and
// "geometric:" prefixes.
//
// # Scene Caching
//
// Scenes are loaded through a detection.SceneCache keyed by reference and
// reused across tool calls. SQLite stores stay open until the server is
// closed. The scene argument defaults to SCENE_MCP_SCENE.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses:
//   - -32602: bad arguments, unknown tool, unparseable target query
//   - -32000: the tool ran and failed (nothing detected, ambiguous tie, I/O)
//   - -32601: unknown method
//   - -32700: a request line that is not JSON
//
// The data field carries the Go error string.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg)
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
