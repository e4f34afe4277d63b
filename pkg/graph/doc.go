// Package graph implements a reference-integrity engine for a mutable,
// persisted object graph. Entities owned by containers hold typed
// reference properties to other entities; the engine keeps backlinks,
// label-based lookups, element-name shadows, and cross-container
// reference lifecycles consistent through mutation, rename, save and
// restore, and copy-on-write transforms.
//
// The engine is single-threaded and cooperative: all mutation is
// synchronous, and pending external containers never block a mutation;
// resolution completes later when the container is attached.
package graph
