package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ironsheep/scene-compose-mcp/internal/compose"
	"github.com/ironsheep/scene-compose-mcp/internal/config"
	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
	"github.com/ironsheep/scene-compose-mcp/internal/render"
	"github.com/ironsheep/scene-compose-mcp/internal/selection"
)

const (
	maxBodyBytes = 1 << 20
	maxPoints    = 100000
)

// Server serves the scene HTTP API.
type Server struct {
	cfg   *config.Config
	cache *detection.SceneCache
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Error repeats Message for browser clients that read data.error.
	Error string `json:"error"`
}

type GenerateRequest struct {
	Instruction string  `json:"instruction"`
	Scene       string  `json:"scene,omitempty"`
	Count       int     `json:"count,omitempty"`
	Seed        *uint64 `json:"seed,omitempty"`
}

type GenerateResponse struct {
	Points    [][3]float64 `json:"points"`
	Source    string       `json:"source"`
	RequestID string       `json:"request_id"`
}

type ComposeRequest struct {
	Scene     string            `json:"scene,omitempty"`
	Targets   map[string]string `json:"targets"`
	TiePolicy string            `json:"tie_policy,omitempty"`
}

type ComposeResponse struct {
	Scene     string         `json:"scene"`
	Output    compose.Output `json:"output"`
	RequestID string         `json:"request_id"`
}

type DetectResponse struct {
	Scene     string              `json:"scene"`
	Label     string              `json:"label"`
	Count     int                 `json:"count"`
	PointSets []geometry.PointSet `json:"point_sets"`
	Centroids []geometry.Vec3     `json:"centroids"`
	RequestID string              `json:"request_id"`
}

// New returns a Server with its own scene cache. A nil cfg uses
// config.Default.
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		cfg:   cfg,
		cache: detection.NewSceneCache(cfg.MaxColorDistance),
	}
}

// Close releases every cached scene.
func (s *Server) Close() {
	s.cache.Clear()
}

// Router returns the API routes wrapped in CORS handling.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/generate", s.handleGenerate).Methods("POST")
	r.HandleFunc("/compose", s.handleCompose).Methods("POST")
	r.HandleFunc("/detect", s.handleDetect).Methods("GET")
	r.HandleFunc("/render", s.handleRender).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	return corsMiddleware(r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"scene":  s.cfg.Scene,
	})
}

// handleGenerate answers an instruction with a point cloud. A shape name
// samples that shape; anything else is a target query resolved against the
// scene.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	var req GenerateRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	instruction := detection.Normalize(req.Instruction)
	if instruction == "" {
		sendErrorResponse(w, "invalid_request", "instruction is required", http.StatusBadRequest)
		return
	}
	if req.Count < 0 || req.Count > maxPoints {
		sendErrorResponse(w, "invalid_request", fmt.Sprintf("count must be between 0 and %d", maxPoints), http.StatusBadRequest)
		return
	}

	var (
		ps     geometry.PointSet
		source string
		err    error
	)
	if isShape(instruction) {
		seed := uint64(1)
		if req.Seed != nil {
			seed = *req.Seed
		}
		ps, err = detection.Generate(instruction, req.Count, seed)
		source = "shape:" + instruction
	} else {
		var res *compose.Resolution
		res, err = s.resolve(r, req.Scene, instruction)
		if res != nil {
			ps, source = res.PointSet, res.Query
		}
	}
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	if s.cfg.Debug() {
		log.Printf("[DEBUG] %s generate %q -> %s (%d points) took=%v", requestID, instruction, source, ps.Len(), time.Since(start))
	}
	writeJSON(w, http.StatusOK, GenerateResponse{
		Points:    pointsOf(ps),
		Source:    source,
		RequestID: requestID,
	})
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()

	var req ComposeRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	ref, out, err := s.compose(r, req.Scene, req.Targets, req.TiePolicy)
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	if s.cfg.Debug() {
		log.Printf("[DEBUG] %s compose scene=%s roles=%v took=%v", requestID, ref, out.Roles(), time.Since(start))
	}
	writeJSON(w, http.StatusOK, ComposeResponse{Scene: ref, Output: out, RequestID: requestID})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	q := r.URL.Query()

	label := detection.Normalize(q.Get("label"))
	if label == "" {
		sendErrorResponse(w, "invalid_request", "label is required", http.StatusBadRequest)
		return
	}
	b, ref, err := s.backend(q.Get("scene"))
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}
	sets, err := b.Detect(r.Context(), label)
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}
	centroids, err := geometry.Centroids(sets)
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	resp := DetectResponse{
		Scene:     ref,
		Label:     label,
		Count:     len(sets),
		PointSets: sets,
		Centroids: make([]geometry.Vec3, len(centroids)),
		RequestID: requestID,
	}
	if resp.PointSets == nil {
		resp.PointSets = []geometry.PointSet{}
	}
	for i, c := range centroids {
		resp.Centroids[i] = geometry.ToVec3(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRender composes ?targets=role:query,... and writes an HTML 3D
// scatter of the result.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	q := r.URL.Query()

	targets, err := parseTargets(q.Get("targets"))
	if err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	ref, out, err := s.compose(r, q.Get("scene"), targets, "")
	if err != nil {
		s.sendError(w, requestID, err)
		return
	}

	layers := make([]render.Layer, 0, len(out))
	for _, role := range out.Roles() {
		layers = append(layers, render.Layer{Name: role, Set: out[role]})
	}
	var buf bytes.Buffer
	if err := render.Scatter3D(&buf, layers, render.ScatterOptions{Title: "Scene " + ref}); err != nil {
		s.sendError(w, requestID, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Request-ID", requestID)
	w.Write(buf.Bytes())
}

// backend loads ref, or the configured scene when ref is empty.
func (s *Server) backend(ref string) (detection.Backend, string, error) {
	if ref == "" {
		ref = s.cfg.Scene
	}
	b, err := s.cache.Load(ref)
	return b, ref, err
}

func (s *Server) composer(ref, tiePolicy string) (*compose.Composer, string, error) {
	b, ref, err := s.backend(ref)
	if err != nil {
		return nil, ref, err
	}
	policy := s.cfg.TiePolicy
	if tiePolicy != "" {
		if policy, err = selection.ParseTiePolicy(tiePolicy); err != nil {
			return nil, ref, fmt.Errorf("%w: %v", compose.ErrInvalidPlan, err)
		}
	}
	return compose.ForBackend(b, policy), ref, nil
}

func (s *Server) resolve(r *http.Request, ref, text string) (*compose.Resolution, error) {
	q, err := compose.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	c, _, err := s.composer(ref, "")
	if err != nil {
		return nil, err
	}
	return c.Resolve(r.Context(), q)
}

// compose runs a plan, or compose.DefaultPlan when targets is empty.
func (s *Server) compose(r *http.Request, ref string, targets map[string]string, tiePolicy string) (string, compose.Output, error) {
	plan := compose.DefaultPlan()
	if len(targets) > 0 {
		var err error
		if plan, err = compose.ParsePlan(targets); err != nil {
			return ref, nil, err
		}
	}
	c, ref, err := s.composer(ref, tiePolicy)
	if err != nil {
		return ref, nil, err
	}
	out, err := c.Compose(r.Context(), plan)
	return ref, out, err
}

// sendError maps a domain error onto an HTTP status.
func (s *Server) sendError(w http.ResponseWriter, requestID string, err error) {
	code, status := classify(err)
	if status == http.StatusInternalServerError || s.cfg.Debug() {
		log.Printf("%s %s: %v", requestID, code, err)
	}
	w.Header().Set("X-Request-ID", requestID)
	sendErrorResponse(w, code, err.Error(), status)
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, detection.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return "not_found", http.StatusNotFound
	case errors.Is(err, selection.ErrAmbiguous):
		return "ambiguous", http.StatusConflict
	case errors.Is(err, compose.ErrInvalidQuery),
		errors.Is(err, compose.ErrInvalidPlan),
		errors.Is(err, detection.ErrUnknownShape),
		errors.Is(err, detection.ErrUnsupportedScene):
		return "invalid_request", http.StatusBadRequest
	default:
		return "processing_error", http.StatusInternalServerError
	}
}

func sendErrorResponse(w http.ResponseWriter, code string, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
		Error:   message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// parseTargets reads "role:query,role:query". An empty string is an empty
// plan.
func parseTargets(s string) (map[string]string, error) {
	targets := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return targets, nil
	}
	for _, part := range strings.Split(s, ",") {
		role, query, ok := strings.Cut(part, ":")
		role, query = strings.TrimSpace(role), strings.TrimSpace(query)
		if !ok || role == "" || query == "" {
			return nil, fmt.Errorf("bad target %q (want role:query)", part)
		}
		if _, dup := targets[role]; dup {
			return nil, fmt.Errorf("duplicate role %q", role)
		}
		targets[role] = query
	}
	return targets, nil
}

func isShape(name string) bool {
	for _, s := range detection.Shapes() {
		if s == name {
			return true
		}
	}
	return false
}

func pointsOf(ps geometry.PointSet) [][3]float64 {
	out := make([][3]float64, len(ps.Points))
	for i, p := range ps.Points {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}
