package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/scene-compose-mcp/internal/config"
	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.LogLevel = "debug"
	s := New(cfg)
	t.Cleanup(s.Close)
	return s, s.Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

// tieScene writes a scene whose two boxes share a centroid.
func tieScene(t *testing.T) string {
	t.Helper()
	box := func(y float64) geometry.PointSet {
		return geometry.NewPointSet(r3.Vector{X: 0, Y: y}, r3.Vector{X: 1, Y: y})
	}
	sc, err := detection.NewScene("tie",
		detection.Object{Category: "box", Geometry: box(0)},
		detection.Object{Category: "box", Geometry: box(5)},
	)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tie.json")
	require.NoError(t, detection.WriteSceneFile(path, sc))
	return path
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"status":"ok","scene":"demo"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodOptions, "/compose", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/compose", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGenerate_Shape(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/generate", `{"instruction":" Sphere ","count":64,"seed":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Points, 64)
	assert.Equal(t, "shape:sphere", resp.Source)
	assert.NotEmpty(t, resp.RequestID)
	for _, p := range resp.Points {
		r := r3.Vector{X: p[0], Y: p[1], Z: p[2]}.Norm()
		assert.InDelta(t, 1.0, r, 1e-9)
	}

	// Same seed, same cloud
	again := do(t, h, http.MethodPost, "/generate", `{"instruction":"sphere","count":64,"seed":3}`)
	var resp2 GenerateResponse
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &resp2))
	assert.Equal(t, resp.Points, resp2.Points)
}

func TestGenerate_Query(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/generate", `{"instruction":"left branch"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Points)
	assert.Equal(t, "geometric:leftmost branch", resp.Source)

	var sumX float64
	for _, p := range resp.Points {
		sumX += p[0]
	}
	assert.InDelta(t, 1.0, sumX/float64(len(resp.Points)), 0.1)
}

func TestGenerate_Errors(t *testing.T) {
	_, h := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"empty instruction", `{"instruction":"  "}`, http.StatusBadRequest, "invalid_request"},
		{"not json", `{"instruction":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", `{"prompt":"cube"}`, http.StatusBadRequest, "invalid_request"},
		{"count too large", `{"instruction":"cube","count":1000001}`, http.StatusBadRequest, "invalid_request"},
		{"nothing detected", `{"instruction":"teapot"}`, http.StatusNotFound, "not_found"},
		{"missing scene file", `{"instruction":"mug","scene":"/nonexistent/scene.json"}`, http.StatusNotFound, "not_found"},
		{"unsupported scene", `{"instruction":"mug","scene":"scene.yaml"}`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/generate", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			e := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.NotEmpty(t, e.Message)
			assert.Equal(t, e.Message, e.Error)
		})
	}
}

type composeBody struct {
	Scene     string                       `json:"scene"`
	Output    map[string]geometry.PointSet `json:"output"`
	RequestID string                       `json:"request_id"`
}

func TestCompose(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/compose", `{"targets":{"cup":"blue mug","stick":"rightmost branch"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp composeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "demo", resp.Scene)
	require.Len(t, resp.Output, 2)

	cup, err := geometry.Centroid(resp.Output["cup"])
	require.NoError(t, err)
	assert.InDelta(t, 0.4, cup.X, 0.05)

	stick, err := geometry.Centroid(resp.Output["stick"])
	require.NoError(t, err)
	assert.InDelta(t, 3.0, stick.X, 0.1)
}

func TestCompose_DefaultPlan(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/compose", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp composeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"mug", "branch"}, keys(resp.Output))
}

func TestCompose_Errors(t *testing.T) {
	_, h := newTestServer(t)
	tie := tieScene(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing role target", `{"targets":{"cup":"blue mug","pot":"teapot"}}`, http.StatusNotFound, "not_found"},
		{"bad query", `{"targets":{"cup":"geometric:"}}`, http.StatusBadRequest, "invalid_request"},
		{"bad tie policy", `{"tie_policy":"random"}`, http.StatusBadRequest, "invalid_request"},
		{"strict tie", `{"scene":"` + tie + `","targets":{"b":"leftmost box"},"tie_policy":"strict"}`, http.StatusConflict, "ambiguous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/compose", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}

	// The default policy takes the first of the tied boxes
	rec := do(t, h, http.MethodPost, "/compose", `{"scene":"`+tie+`","targets":{"b":"leftmost box"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp composeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.0, resp.Output["b"].Points[0].Y)
}

func TestDetect(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/detect?label=branch", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Label     string              `json:"label"`
		Count     int                 `json:"count"`
		PointSets []geometry.PointSet `json:"point_sets"`
		Centroids []geometry.Vec3     `json:"centroids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "branch", resp.Label)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Centroids, 3)

	// Scene order is preserved
	assert.InDelta(t, 3.0, resp.Centroids[0].X, 0.1)
	assert.InDelta(t, 1.0, resp.Centroids[1].X, 0.1)
	assert.InDelta(t, 2.0, resp.Centroids[2].X, 0.1)
}

func TestDetect_Empty(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/detect?label=teapot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"point_sets":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	rec = do(t, h, http.MethodGet, "/detect", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetect_MissingSceneFile(t *testing.T) {
	_, h := newTestServer(t)
	dir := t.TempDir()

	for _, name := range []string{"typo.db", "typo.json"} {
		t.Run(name, func(t *testing.T) {
			q := url.Values{"label": {"mug"}, "scene": {filepath.Join(dir, name)}}
			rec := do(t, h, http.MethodGet, "/detect?"+q.Encode(), "")
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
			assert.Equal(t, "not_found", decodeError(t, rec).Code)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a missing scene must not be created")
}

func TestRender(t *testing.T) {
	_, h := newTestServer(t)
	q := url.Values{"targets": {"cup:blue mug,stick:first:branch"}}
	rec := do(t, h, http.MethodGet, "/render?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	body := rec.Body.String()
	assert.Contains(t, body, "<html")
	assert.Contains(t, body, "cup")
	assert.Contains(t, body, "stick")
}

func TestRender_BadTargets(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/render?targets="+url.QueryEscape("cup"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseTargets(t *testing.T) {
	got, err := parseTargets(" cup : blue mug , stick:first:branch")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cup": "blue mug", "stick": "first:branch"}, got)

	got, err = parseTargets("")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"cup", ":mug", "cup:", "a:mug,a:branch"} {
		_, err := parseTargets(bad)
		assert.Error(t, err, bad)
	}
}

func keys(m map[string]geometry.PointSet) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
