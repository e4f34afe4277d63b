package index

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tetherworks/tether/pkg/graph"
)

// ErrClosed is returned by operations on a closed index.
var ErrClosed = errors.New("index closed")

const formatVersion = "1"

// Edge is one reference edge: a property on an owning entity pointing at
// a target entity, possibly in another container or an unloaded file.
type Edge struct {
	Container string
	Owner     string
	Property  string
	Kind      string
	// TargetContainer is empty for an external edge whose container is
	// not loaded.
	TargetContainer string
	Target          string
	Sub             string
	// ExternalPath is set for cross-file references.
	ExternalPath string
	// Resolved reports whether the target entity was loaded when the
	// index was built.
	Resolved bool
}

// Index is a SQLite-backed store of reference edges, rebuilt from a
// session snapshot and queried by the dependency tooling.
type Index struct {
	mu   sync.RWMutex
	db   *sql.DB
	open bool
}

// Open creates or replaces the edge index at path. Use ":memory:" for a
// throwaway index.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	for _, ddl := range []string{
		`DROP TABLE IF EXISTS edges;`,
		`DROP TABLE IF EXISTS meta;`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("resetting index: %w", err)
		}
	}
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating indexes: %w", err)
		}
	}
	if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES ('format', ?)`, formatVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("writing meta: %w", err)
	}
	return &Index{db: db, open: true}, nil
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.open {
		return nil
	}
	ix.open = false
	return ix.db.Close()
}

// Rebuild replaces the index contents with the edges currently visible
// in sess, in one transaction.
func (ix *Index) Rebuild(sess *graph.Session) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.open {
		return ErrClosed
	}

	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM edges`); err != nil {
		return fmt.Errorf("clearing edges: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO edges
		(edge_id, container, owner, property, kind, target_container, target, sub, external_path, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, edge := range collectEdges(sess) {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating edge id: %w", err)
		}
		resolved := 0
		if edge.Resolved {
			resolved = 1
		}
		if _, err := stmt.Exec(id.String(),
			edge.Container, edge.Owner, edge.Property, edge.Kind,
			edge.TargetContainer, edge.Target, edge.Sub,
			edge.ExternalPath, resolved); err != nil {
			return fmt.Errorf("inserting edge: %w", err)
		}
	}
	return tx.Commit()
}

// Outgoing returns the edges owned by the named entity, every entity of
// the container when entity is empty.
func (ix *Index) Outgoing(container, entity string) ([]Edge, error) {
	if entity == "" {
		return ix.query(`SELECT container, owner, property, kind, target_container, target, sub, external_path, resolved
			FROM edges WHERE container = ?
			ORDER BY owner, property, target, sub`, container)
	}
	return ix.query(`SELECT container, owner, property, kind, target_container, target, sub, external_path, resolved
		FROM edges WHERE container = ? AND owner = ?
		ORDER BY property, target, sub`, container, entity)
}

// Incoming returns the edges pointing at the named entity.
func (ix *Index) Incoming(container, entity string) ([]Edge, error) {
	return ix.query(`SELECT container, owner, property, kind, target_container, target, sub, external_path, resolved
		FROM edges WHERE target_container = ? AND target = ?
		ORDER BY container, owner, property, sub`, container, entity)
}

// External returns the edges referencing entities stored at path,
// resolved or not.
func (ix *Index) External(path string) ([]Edge, error) {
	return ix.query(`SELECT container, owner, property, kind, target_container, target, sub, external_path, resolved
		FROM edges WHERE external_path = ?
		ORDER BY container, owner, property, target, sub`, path)
}

// Unresolved returns the edges whose target was not loaded at build
// time: pending externals and dangling names.
func (ix *Index) Unresolved() ([]Edge, error) {
	return ix.query(`SELECT container, owner, property, kind, target_container, target, sub, external_path, resolved
		FROM edges WHERE resolved = 0
		ORDER BY container, owner, property, target, sub`)
}

// Count returns the number of edges stored.
func (ix *Index) Count() (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.open {
		return 0, ErrClosed
	}
	var n int
	if err := ix.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return n, nil
}

func (ix *Index) query(q string, args ...any) ([]Edge, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.open {
		return nil, ErrClosed
	}
	rows, err := ix.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		var resolved int
		if err := rows.Scan(&e.Container, &e.Owner, &e.Property, &e.Kind,
			&e.TargetContainer, &e.Target, &e.Sub, &e.ExternalPath, &resolved); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		e.Resolved = resolved != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
