// Package web serves scene composition over HTTP.
//
// Routes:
//
//	POST /generate  {"instruction": "torus"} or {"instruction": "left branch"}
//	POST /compose   {"scene": "demo", "targets": {"mug": "blue mug"}}
//	GET  /detect    ?label=branch&scene=demo
//	GET  /render    ?targets=mug:blue mug,branch:left branch
//	GET  /health
//
// Failures return {"code", "message"} with 404 when a target detects
// nothing, 409 for a strict tie, 400 for bad input and 500 otherwise.
package web
