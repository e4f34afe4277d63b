// Package index maintains a SQLite index of the reference edges held in
// a session, so tooling can answer dependency queries without walking
// every container.
package index

// Schema DDL for the edge index.
const (
	createEdges = `CREATE TABLE edges (
    edge_id TEXT PRIMARY KEY,
    container TEXT NOT NULL,
    owner TEXT NOT NULL,
    property TEXT NOT NULL,
    kind TEXT NOT NULL,
    target_container TEXT NOT NULL,
    target TEXT NOT NULL,
    sub TEXT NOT NULL,
    external_path TEXT NOT NULL,
    resolved INTEGER NOT NULL
);`

	createMeta = `CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// Index DDL for the common lookups: everything a container owns,
// everything pointing at an entity, and everything hanging off an
// external file.
const (
	idxEdgesContainer = `CREATE INDEX idx_edges_container ON edges(container);`
	idxEdgesTarget    = `CREATE INDEX idx_edges_target ON edges(target_container, target);`
	idxEdgesExternal  = `CREATE INDEX idx_edges_external ON edges(external_path);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createEdges,
	createMeta,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxEdgesContainer,
	idxEdgesTarget,
	idxEdgesExternal,
}
