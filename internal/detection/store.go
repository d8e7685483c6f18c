package detection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Register the "sqlite" database/sql driver

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// DefaultStoreScene is the scene name used when a store path names none.
const DefaultStoreScene = "default"

const storeSchema = `
CREATE TABLE IF NOT EXISTS scene_objects (
	object_id     TEXT PRIMARY KEY,
	scene         TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	category      TEXT NOT NULL,
	instance      TEXT NOT NULL DEFAULT '',
	geometry_json TEXT NOT NULL,
	created_at_ns INTEGER NOT NULL,
	UNIQUE (scene, seq)
);
CREATE INDEX IF NOT EXISTS idx_scene_objects_category ON scene_objects (scene, category, seq);
CREATE INDEX IF NOT EXISTS idx_scene_objects_instance ON scene_objects (scene, instance, seq);
`

// Store is a Backend persisted in SQLite. Each Store reads one named scene;
// several scenes may share a database file.
type Store struct {
	db     *sql.DB
	scene  string
	colors *ColorResolver
	owned  bool
}

// OpenStore opens (creating if needed) the SQLite database at path and
// returns a Store bound to scene.
func OpenStore(path, scene string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open scene store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	s, err := NewStore(db, scene)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore wraps an open database, ensuring the schema exists.
func NewStore(db *sql.DB, scene string) (*Store, error) {
	if scene == "" {
		scene = DefaultStoreScene
	}
	if _, err := db.Exec(storeSchema); err != nil {
		return nil, fmt.Errorf("create scene schema: %w", err)
	}
	return &Store{db: db, scene: scene, colors: NewColorResolver(DefaultMaxColorDistance)}, nil
}

// SetColorResolver replaces the resolver used when no descriptor matches.
func (s *Store) SetColorResolver(r *ColorResolver) {
	s.colors = r
}

// Scene returns the scene name this store reads.
func (s *Store) Scene() string {
	return s.scene
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Save replaces the store's scene with the objects of sc, preserving order.
// Objects without an ID are assigned a new UUID. The IDs are returned in
// object order.
func (s *Store) Save(ctx context.Context, sc *Scene) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scene_objects WHERE scene = ?`, s.scene); err != nil {
		return nil, fmt.Errorf("clear scene: %w", err)
	}

	now := time.Now().UnixNano()
	ids := make([]string, 0, len(sc.objects))
	for seq, o := range sc.objects {
		id := o.ID
		if id == "" {
			id = uuid.New().String()
		}
		geom, err := json.Marshal(o.Geometry)
		if err != nil {
			return nil, fmt.Errorf("encode object %d: %w", seq, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scene_objects (object_id, scene, seq, category, instance, geometry_json, created_at_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, s.scene, seq, o.Category, o.Instance, string(geom), now)
		if err != nil {
			return nil, fmt.Errorf("insert object %d: %w", seq, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save: %w", err)
	}
	return ids, nil
}

// Detect returns the category's objects or, failing that, the objects whose
// instance descriptor equals label.
func (s *Store) Detect(ctx context.Context, label string) ([]geometry.PointSet, error) {
	label = Normalize(label)
	objs, err := s.query(ctx, `category = ?`, label)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 && label != "" {
		objs, err = s.query(ctx, `instance = ?`, label)
		if err != nil {
			return nil, err
		}
	}
	sets := make([]geometry.PointSet, len(objs))
	for i, o := range objs {
		sets[i] = o.Geometry
	}
	return sets, nil
}

// FindInstanceInCategory returns the index of instance within Detect(category).
func (s *Store) FindInstanceInCategory(ctx context.Context, instance, category string) (int, error) {
	objs, err := s.query(ctx, `category = ?`, Normalize(category))
	if err != nil {
		return -1, err
	}
	return findInstance(objs, s.colors, instance, category)
}

// Categories returns the distinct categories in sorted order.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM scene_objects WHERE scene = ? ORDER BY category`, s.scene)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Objects returns every object of the scene in detection order.
func (s *Store) Objects(ctx context.Context) ([]Object, error) {
	return s.query(ctx, `1 = 1`)
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]Object, error) {
	q := `SELECT object_id, category, instance, geometry_json FROM scene_objects WHERE scene = ? AND ` +
		where + ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q, append([]any{s.scene}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	var out []Object
	for rows.Next() {
		var (
			o    Object
			geom string
		)
		if err := rows.Scan(&o.ID, &o.Category, &o.Instance, &geom); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if err := json.Unmarshal([]byte(geom), &o.Geometry); err != nil {
			return nil, fmt.Errorf("decode object %s: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
