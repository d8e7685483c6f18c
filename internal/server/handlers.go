package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ironsheep/scene-compose-mcp/internal/compose"
	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
	"github.com/ironsheep/scene-compose-mcp/internal/render"
	"github.com/ironsheep/scene-compose-mcp/internal/selection"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "scene_detect", "scene_compose").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// paramError marks a tool failure caused by the caller's arguments.
type paramError struct{ err error }

func (e *paramError) Error() string { return e.err.Error() }
func (e *paramError) Unwrap() error { return e.err }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{err: fmt.Errorf(format, args...)}
}

// decodeArgs unmarshals tool arguments, treating absent arguments as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &paramError{err: err}
	}
	return nil
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Argument errors return -32602; other tool errors return -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(context.Background(), params.Name, params.Arguments)
	if s.cfg.Debug() {
		log.Printf("[DEBUG] tool=%s took=%v err=%v", params.Name, time.Since(start), err)
	}
	if err != nil {
		var pe *paramError
		if errors.As(err, &pe) || errors.Is(err, compose.ErrInvalidQuery) || errors.Is(err, compose.ErrInvalidPlan) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads the scene from cache as needed
//  4. Calls the appropriate detection/selection/compose/render function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Scene Information
	case "scene_load":
		return s.handleSceneLoad(ctx, args)
	case "scene_categories":
		return s.handleSceneCategories(ctx, args)

	// Detection
	case "scene_detect":
		return s.handleSceneDetect(ctx, args)
	case "scene_find_instance":
		return s.handleSceneFindInstance(ctx, args)

	// Selection and Composition
	case "scene_select":
		return s.handleSceneSelect(ctx, args)
	case "scene_compose":
		return s.handleSceneCompose(ctx, args)

	// Measurement
	case "scene_measure":
		return s.handleSceneMeasure(ctx, args)
	case "scene_check_alignment":
		return s.handleSceneCheckAlignment(ctx, args)

	// Synthetic Data and Rendering
	case "scene_generate":
		return s.handleSceneGenerate(args)
	case "scene_render":
		return s.handleSceneRender(ctx, args)

	default:
		return nil, invalidParams("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// backend loads ref, or the configured scene when ref is empty.
func (s *Server) backend(ref string) (detection.Backend, string, error) {
	if ref == "" {
		ref = s.cfg.Scene
	}
	b, err := s.cache.Load(ref)
	if err != nil {
		return nil, ref, err
	}
	return b, ref, nil
}

// composer builds a Composer for ref with the requested tie policy, falling
// back to the configured one.
func (s *Server) composer(ref, tiePolicy string) (*compose.Composer, string, error) {
	b, ref, err := s.backend(ref)
	if err != nil {
		return nil, ref, err
	}
	policy := s.cfg.TiePolicy
	if tiePolicy != "" {
		if policy, err = selection.ParseTiePolicy(tiePolicy); err != nil {
			return nil, ref, &paramError{err: err}
		}
	}
	return compose.ForBackend(b, policy), ref, nil
}

// plan parses role to query targets, or returns compose.DefaultPlan.
func plan(targets map[string]string) ([]compose.Target, error) {
	if len(targets) == 0 {
		return compose.DefaultPlan(), nil
	}
	return compose.ParsePlan(targets)
}

// === Scene Information Handlers ===

type sceneArgs struct {
	Scene string `json:"scene"`
}

// SceneInfo summarizes a loaded scene.
type SceneInfo struct {
	Scene      string         `json:"scene"`
	Categories []string       `json:"categories"`
	Counts     map[string]int `json:"counts"`
	Objects    int            `json:"objects"`
}

func (s *Server) handleSceneLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	b, ref, err := s.backend(a.Scene)
	if err != nil {
		return nil, err
	}
	cats, err := b.Categories(ctx)
	if err != nil {
		return nil, err
	}

	info := &SceneInfo{Scene: ref, Categories: cats, Counts: make(map[string]int, len(cats))}
	for _, c := range cats {
		sets, err := b.Detect(ctx, c)
		if err != nil {
			return nil, err
		}
		info.Counts[c] = len(sets)
		info.Objects += len(sets)
	}
	return info, nil
}

func (s *Server) handleSceneCategories(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	b, ref, err := s.backend(a.Scene)
	if err != nil {
		return nil, err
	}
	cats, err := b.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"scene": ref, "categories": cats}, nil
}

// === Detection Handlers ===

type sceneDetectArgs struct {
	Scene       string `json:"scene"`
	Label       string `json:"label"`
	SummaryOnly bool   `json:"summary_only"`
}

// Detection is one detected instance.
type Detection struct {
	Index    int                `json:"index"`
	Points   int                `json:"points"`
	Centroid geometry.Vec3      `json:"centroid"`
	PointSet *geometry.PointSet `json:"point_set,omitempty"`
}

// DetectResult lists the detections for a label.
type DetectResult struct {
	Scene      string      `json:"scene"`
	Label      string      `json:"label"`
	Count      int         `json:"count"`
	Detections []Detection `json:"detections"`
}

func (s *Server) handleSceneDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneDetectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Label == "" {
		return nil, invalidParams("label is required")
	}
	b, ref, err := s.backend(a.Scene)
	if err != nil {
		return nil, err
	}
	sets, err := b.Detect(ctx, a.Label)
	if err != nil {
		return nil, err
	}

	res := &DetectResult{Scene: ref, Label: detection.Normalize(a.Label), Count: len(sets), Detections: make([]Detection, 0, len(sets))}
	for i := range sets {
		c, err := geometry.Centroid(sets[i])
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		d := Detection{Index: i, Points: sets[i].Len(), Centroid: geometry.ToVec3(c)}
		if !a.SummaryOnly {
			d.PointSet = &sets[i]
		}
		res.Detections = append(res.Detections, d)
	}
	return res, nil
}

type sceneFindInstanceArgs struct {
	Scene    string `json:"scene"`
	Instance string `json:"instance"`
	Category string `json:"category"`
}

func (s *Server) handleSceneFindInstance(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneFindInstanceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	var q compose.Query
	if a.Category != "" {
		instance := detection.Normalize(a.Instance)
		if instance == "" {
			return nil, invalidParams("instance is required")
		}
		q = compose.Query{
			Strategy: compose.StrategyNamed,
			Instance: instance,
			Category: detection.Normalize(a.Category),
			Raw:      a.Instance,
		}
	} else {
		var err error
		if q, err = compose.ParseQuery("named:" + a.Instance); err != nil {
			return nil, err
		}
	}
	c, _, err := s.composer(a.Scene, "")
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, c, q)
}

// === Selection and Composition Handlers ===

type sceneSelectArgs struct {
	Scene     string    `json:"scene"`
	Category  string    `json:"category"`
	Criterion string    `json:"criterion"`
	Reference []float64 `json:"reference"`
	TiePolicy string    `json:"tie_policy"`
}

func (s *Server) handleSceneSelect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneSelectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Category == "" {
		return nil, invalidParams("category is required")
	}
	if a.Criterion == "" {
		a.Criterion = "leftmost"
	}

	var ref r3.Vector
	switch len(a.Reference) {
	case 0:
	case 2:
		ref = r3.Vector{X: a.Reference[0], Y: a.Reference[1]}
	case 3:
		ref = r3.Vector{X: a.Reference[0], Y: a.Reference[1], Z: a.Reference[2]}
	default:
		return nil, invalidParams("reference must have 2 or 3 coordinates, got %d", len(a.Reference))
	}

	criterion, ok := selection.ParseCriterion(a.Criterion, ref)
	if !ok {
		return nil, invalidParams("unknown criterion %q", a.Criterion)
	}
	c, _, err := s.composer(a.Scene, a.TiePolicy)
	if err != nil {
		return nil, err
	}
	q := compose.Query{
		Strategy:  compose.StrategyGeometric,
		Category:  detection.Normalize(a.Category),
		Criterion: criterion,
		Raw:       a.Criterion + " " + a.Category,
	}
	return s.resolve(ctx, c, q)
}

// ResolveResult is a single resolved target.
type ResolveResult struct {
	compose.Resolution
	Centroid geometry.Vec3 `json:"centroid"`
}

func (s *Server) resolve(ctx context.Context, c *compose.Composer, q compose.Query) (*ResolveResult, error) {
	res, err := c.Resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	centroid, err := geometry.Centroid(res.PointSet)
	if err != nil {
		return nil, err
	}
	return &ResolveResult{Resolution: *res, Centroid: geometry.ToVec3(centroid)}, nil
}

type sceneComposeArgs struct {
	Scene     string            `json:"scene"`
	Targets   map[string]string `json:"targets"`
	TiePolicy string            `json:"tie_policy"`
}

// RoleSummary describes how a role was filled.
type RoleSummary struct {
	Query      string        `json:"query"`
	Strategy   string        `json:"strategy"`
	Index      int           `json:"index"`
	Candidates int           `json:"candidates"`
	Centroid   geometry.Vec3 `json:"centroid"`
}

// ComposeResult is the output mapping plus how each role was resolved.
type ComposeResult struct {
	Scene   string                 `json:"scene"`
	Output  compose.Output         `json:"output"`
	Summary map[string]RoleSummary `json:"summary"`
}

func (s *Server) handleSceneCompose(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneComposeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	targets, err := plan(a.Targets)
	if err != nil {
		return nil, err
	}
	c, ref, err := s.composer(a.Scene, a.TiePolicy)
	if err != nil {
		return nil, err
	}
	resolved, err := c.ResolveAll(ctx, targets)
	if err != nil {
		return nil, err
	}

	res := &ComposeResult{
		Scene:   ref,
		Output:  make(compose.Output, len(resolved)),
		Summary: make(map[string]RoleSummary, len(resolved)),
	}
	for _, r := range resolved {
		centroid, err := geometry.Centroid(r.PointSet)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", r.Role, err)
		}
		res.Output[r.Role] = r.PointSet
		res.Summary[r.Role] = RoleSummary{
			Query:      r.Query,
			Strategy:   r.Strategy,
			Index:      r.Index,
			Candidates: r.Candidates,
			Centroid:   geometry.ToVec3(centroid),
		}
	}
	return res, nil
}

// === Measurement Handlers ===

type sceneMeasureArgs struct {
	Scene string `json:"scene"`
	A     string `json:"a"`
	B     string `json:"b"`
}

func (s *Server) handleSceneMeasure(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneMeasureArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	targets, err := compose.ParsePlan(map[string]string{"a": a.A, "b": a.B})
	if err != nil {
		return nil, err
	}
	c, _, err := s.composer(a.Scene, "")
	if err != nil {
		return nil, err
	}
	out, err := c.Compose(ctx, targets)
	if err != nil {
		return nil, err
	}
	return geometry.MeasureDistance(out["a"], out["b"])
}

type sceneCheckAlignmentArgs struct {
	Scene     string   `json:"scene"`
	Targets   []string `json:"targets"`
	Tolerance float64  `json:"tolerance"`
}

func (s *Server) handleSceneCheckAlignment(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneCheckAlignmentArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Targets) < 2 {
		return nil, invalidParams("need at least 2 targets, got %d", len(a.Targets))
	}
	if a.Tolerance == 0 {
		a.Tolerance = 0.05
	}
	c, _, err := s.composer(a.Scene, "")
	if err != nil {
		return nil, err
	}

	centroids := make([]r3.Vector, len(a.Targets))
	for i, t := range a.Targets {
		q, err := compose.ParseQuery(t)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		res, err := c.Resolve(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t, err)
		}
		if centroids[i], err = geometry.Centroid(res.PointSet); err != nil {
			return nil, err
		}
	}
	return geometry.CheckAlignment(centroids, a.Tolerance), nil
}

// === Synthetic Data and Rendering Handlers ===

type sceneGenerateArgs struct {
	Shape string  `json:"shape"`
	Count int     `json:"count"`
	Seed  *uint64 `json:"seed"`
}

// GenerateResult is a synthetic point cloud.
type GenerateResult struct {
	Shape    string            `json:"shape"`
	Count    int               `json:"count"`
	Seed     uint64            `json:"seed"`
	Centroid geometry.Vec3     `json:"centroid"`
	Min      geometry.Vec3     `json:"min"`
	Max      geometry.Vec3     `json:"max"`
	PointSet geometry.PointSet `json:"point_set"`
}

func (s *Server) handleSceneGenerate(args json.RawMessage) (interface{}, error) {
	var a sceneGenerateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = detection.DefaultShapePoints
	}
	if a.Count < 0 || a.Count > 100000 {
		return nil, invalidParams("count must be between 1 and 100000, got %d", a.Count)
	}
	seed := uint64(1)
	if a.Seed != nil {
		seed = *a.Seed
	}

	ps, err := detection.Generate(a.Shape, a.Count, seed)
	if err != nil {
		if errors.Is(err, detection.ErrUnknownShape) {
			return nil, &paramError{err: err}
		}
		return nil, err
	}
	centroid, err := geometry.Centroid(ps)
	if err != nil {
		return nil, err
	}
	b, err := geometry.BoundsOf(ps)
	if err != nil {
		return nil, err
	}
	return &GenerateResult{
		Shape:    a.Shape,
		Count:    ps.Len(),
		Seed:     seed,
		Centroid: geometry.ToVec3(centroid),
		Min:      geometry.ToVec3(b.Min),
		Max:      geometry.ToVec3(b.Max),
		PointSet: ps,
	}, nil
}

type sceneRenderArgs struct {
	Scene       string            `json:"scene"`
	Targets     map[string]string `json:"targets"`
	Format      string            `json:"format"`
	View        string            `json:"view"`
	Size        int               `json:"size"`
	Splat       *float64          `json:"splat"`
	GridSpacing float64           `json:"grid_spacing"`
}

// HTMLResult carries a rendered HTML page.
type HTMLResult struct {
	HTML     string `json:"html"`
	MimeType string `json:"mime_type"`
}

func (s *Server) handleSceneRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sceneRenderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Format == "" {
		a.Format = "png"
	}
	if a.Size == 0 {
		a.Size = s.cfg.RenderSize
	}
	if a.Size < render.MinSize || a.Size > render.MaxSize {
		return nil, invalidParams("size must be between %d and %d, got %d", render.MinSize, render.MaxSize, a.Size)
	}
	splat := 1.0
	if a.Splat != nil {
		splat = *a.Splat
	}
	if splat < 0 || splat > render.MaxSplat {
		return nil, invalidParams("splat must be between 0 and %d, got %g", render.MaxSplat, splat)
	}
	if a.GridSpacing < 0 {
		return nil, invalidParams("grid_spacing must not be negative, got %g", a.GridSpacing)
	}

	targets, err := plan(a.Targets)
	if err != nil {
		return nil, err
	}
	c, ref, err := s.composer(a.Scene, "")
	if err != nil {
		return nil, err
	}
	out, err := c.Compose(ctx, targets)
	if err != nil {
		return nil, err
	}
	layers := make([]render.Layer, 0, len(out))
	for _, role := range out.Roles() {
		layers = append(layers, render.Layer{Name: role, Set: out[role]})
	}

	switch a.Format {
	case "png":
		view, err := render.ParseView(a.View)
		if err != nil {
			return nil, &paramError{err: err}
		}
		res, err := render.Projection(layers, render.ProjectionOptions{
			View:        view,
			Size:        a.Size,
			Splat:       splat,
			GridSpacing: a.GridSpacing,
			GridLabels:  a.GridSpacing > 0,
		})
		if errors.Is(err, render.ErrInvalidOptions) {
			return nil, &paramError{err: err}
		}
		return res, err
	case "html":
		var buf bytes.Buffer
		if err := render.Scatter3D(&buf, layers, render.ScatterOptions{Title: "Scene " + ref}); err != nil {
			return nil, err
		}
		return &HTMLResult{HTML: buf.String(), MimeType: "text/html"}, nil
	default:
		return nil, invalidParams("unknown format %q (want png or html)", a.Format)
	}
}
