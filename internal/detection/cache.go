package detection

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DemoSceneName is the scene reference that selects DemoScene.
const DemoSceneName = "demo"

// ErrUnsupportedScene is returned for a scene reference with an unknown format.
var ErrUnsupportedScene = errors.New("unsupported scene format")

// SceneCache provides thread-safe caching of loaded backends so repeated tool
// calls against the same scene do not re-read it.
//
// Scene references take three forms:
//   - "demo": the built-in DemoScene
//   - "path/to/scene.json": a JSON scene file (see LoadSceneFile)
//   - "path/to/scenes.db" or "path/to/scenes.db#name": scene "name" (default
//     DefaultStoreScene) of a SQLite store; ".sqlite" and ".sqlite3" also work
//
// Cached backends remain open until Evict or Clear.
type SceneCache struct {
	mu               sync.RWMutex
	backends         map[string]Backend
	maxColorDistance float64
}

// NewSceneCache creates an empty cache. maxColorDistance configures color
// resolution for every backend it loads; non-positive means the default.
func NewSceneCache(maxColorDistance float64) *SceneCache {
	return &SceneCache{
		backends:         make(map[string]Backend),
		maxColorDistance: maxColorDistance,
	}
}

// Load returns the cached backend for ref, loading it on first use.
func (c *SceneCache) Load(ref string) (Backend, error) {
	c.mu.RLock()
	if b, ok := c.backends[ref]; ok {
		c.mu.RUnlock()
		return b, nil
	}
	c.mu.RUnlock()

	b, err := c.open(ref)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.backends[ref]; ok {
		// Lost a race with another loader; keep the first one.
		closeBackend(b)
		return existing, nil
	}
	c.backends[ref] = b
	return b, nil
}

// Put registers a backend under ref, replacing (and closing) any previous one.
func (c *SceneCache) Put(ref string, b Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.backends[ref]; ok && old != b {
		closeBackend(old)
	}
	c.backends[ref] = b
}

// Evict removes ref from the cache, closing it if it holds resources.
func (c *SceneCache) Evict(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.backends[ref]; ok {
		closeBackend(b)
		delete(c.backends, ref)
	}
}

// Clear evicts every cached backend.
func (c *SceneCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.backends {
		closeBackend(b)
	}
	c.backends = make(map[string]Backend)
}

func (c *SceneCache) open(ref string) (Backend, error) {
	colors := NewColorResolver(c.maxColorDistance)

	if ref == DemoSceneName {
		s := DemoScene()
		s.SetColorResolver(colors)
		return s, nil
	}

	path, scene, _ := strings.Cut(ref, "#")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		s, err := LoadSceneFile(path)
		if err != nil {
			return nil, err
		}
		s.SetColorResolver(colors)
		return s, nil
	case ".db", ".sqlite", ".sqlite3":
		// OpenStore creates missing databases; a scene reference must not.
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open scene store: %w", err)
		}
		st, err := OpenStore(path, scene)
		if err != nil {
			return nil, err
		}
		st.SetColorResolver(colors)
		return st, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScene, ref)
	}
}

func closeBackend(b Backend) {
	if cl, ok := b.(io.Closer); ok {
		_ = cl.Close()
	}
}
