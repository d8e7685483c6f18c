package detection

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSceneCache_Demo(t *testing.T) {
	c := NewSceneCache(0)

	a, err := c.Load(DemoSceneName)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, err := c.Load(DemoSceneName)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if a != b {
		t.Error("expected cached backend to be reused")
	}

	c.Evict(DemoSceneName)
	d, _ := c.Load(DemoSceneName)
	if d == a {
		t.Error("expected a fresh backend after Evict")
	}
}

func TestSceneCache_JSONAndStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "scene.json")
	if err := WriteSceneFile(jsonPath, testScene(t)); err != nil {
		t.Fatalf("WriteSceneFile failed: %v", err)
	}

	dbPath := filepath.Join(dir, "scenes.db")
	st, err := OpenStore(dbPath, "lab")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, err := st.Save(ctx, testScene(t)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	st.Close()

	c := NewSceneCache(0)
	defer c.Clear()

	for _, ref := range []string{jsonPath, dbPath + "#lab"} {
		t.Run(filepath.Ext(ref), func(t *testing.T) {
			b, err := c.Load(ref)
			if err != nil {
				t.Fatalf("Load(%s) failed: %v", ref, err)
			}
			mugs, err := b.Detect(ctx, "mug")
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if len(mugs) != 3 {
				t.Errorf("mugs: got %d, want 3", len(mugs))
			}
		})
	}
}

func TestSceneCache_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewSceneCache(0).Load(path); !errors.Is(err, ErrUnsupportedScene) {
		t.Errorf("expected ErrUnsupportedScene, got %v", err)
	}
}

func TestSceneCache_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewSceneCache(0)
	defer c.Clear()

	for _, name := range []string{"typo.db", "typo.sqlite#lab", "typo.json"} {
		t.Run(name, func(t *testing.T) {
			ref := filepath.Join(dir, name)
			if _, err := c.Load(ref); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("expected fs.ErrNotExist, got %v", err)
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("loading missing scenes created %d files", len(entries))
	}
}

func TestSceneCache_Put(t *testing.T) {
	c := NewSceneCache(0)
	s := testScene(t)
	c.Put("mine", s)

	got, err := c.Load("mine")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != Backend(s) {
		t.Error("expected the registered backend")
	}
}

func TestSceneCache_ConcurrentLoad(t *testing.T) {
	c := NewSceneCache(0)
	var wg sync.WaitGroup
	results := make([]Backend, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := c.Load(DemoSceneName)
			if err != nil {
				t.Errorf("Load failed: %v", err)
				return
			}
			results[i] = b
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent loads returned different backends")
		}
	}
}
