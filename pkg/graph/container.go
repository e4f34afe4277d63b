package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Container owns entities: a document-like unit with a save location, a
// modification stamp used for external staleness checks, and an optional
// partial-load marker (only a filtered subset of entities materialized).
type Container struct {
	sess *Session
	name string
	uid  string

	filePath string
	stamp    string
	partial  bool

	restoring bool
	closed    bool

	entities map[string]*Entity
	order    []*Entity
}

// Name returns the container name, unique within its session.
func (c *Container) Name() string { return c.name }

// UID returns the container's stable identifier, preserved across saves.
func (c *Container) UID() string { return c.uid }

// FilePath returns the save location, or "" when never saved.
func (c *Container) FilePath() string { return c.filePath }

// Stamp returns the last-modification stamp written on save.
func (c *Container) Stamp() string { return c.stamp }

// Partial reports whether the container was opened as a partial load.
func (c *Container) Partial() bool { return c.partial }

// SetPartial marks the container as a partial load.
func (c *Container) SetPartial(partial bool) { c.partial = partial }

// Restoring reports whether the container is currently being restored.
func (c *Container) Restoring() bool { return c.restoring }

// Closed reports whether the container has been closed.
func (c *Container) Closed() bool { return c.closed }

// SetFilePath records the save location without touching the stamp.
func (c *Container) SetFilePath(path string) { c.filePath = path }

// MarkSaved updates the modification stamp, records path, and notifies
// external descriptors pointing at this container so their referencing
// containers notice the stamp change.
func (c *Container) MarkSaved(path string) {
	c.filePath = path
	c.stamp = time.Now().UTC().Format(time.RFC3339Nano)
	c.sess.containerSaved(c)
}

// NewEntity creates an entity with the given unique name. Returns
// ErrNameTaken when the name is in use and ErrInvalidName for an empty
// name or one containing a path separator.
func (c *Container) NewEntity(name string) (*Entity, error) {
	if c.closed {
		return nil, ErrContainerClosed
	}
	if name == "" || containsAny(name, ".$@#") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := c.entities[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	e := &Entity{
		sess:      c.sess,
		container: c,
		id:        c.sess.allocID(),
		name:      name,
		attached:  true,
		restoring: c.restoring,
	}
	c.entities[name] = e
	c.order = append(c.order, e)
	c.sess.arena[e.id] = e
	return e, nil
}

// Entity returns the named entity, or nil.
func (c *Container) Entity(name string) *Entity {
	return c.entities[name]
}

// Entities returns the entities in creation order.
func (c *Container) Entities() []*Entity {
	return c.order
}

// RemoveEntity destroys an entity. The entity is first marked pending
// destroy, incoming references are broken, and finally its own outgoing
// properties are unbound; the owner's backlink entries elsewhere expire
// by id once the entity leaves the arena.
func (c *Container) RemoveEntity(e *Entity) {
	if e == nil || e.container != c || !e.attached {
		return
	}
	e.destroying = true

	// Break incoming references from owners within the session.
	owners := e.Backlinks()
	c.sess.BreakLinks(e, owners, false)
	c.sess.breakExternalLinks(e, false)

	// Teardown of the entity's own properties skips backlink removal
	// because the owner is pending destroy; the stale ids expire with
	// the arena entry.
	for _, p := range e.props {
		p.Unbind()
	}

	e.attached = false
	delete(c.entities, e.name)
	for i, o := range c.order {
		if o == e {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	delete(c.sess.arena, e.id)
}

// Close deletes the container: external references into it are detached
// (the stored target name is kept for potential reattachment), its own
// entities are destroyed, and the container leaves the session.
func (c *Container) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.sess.containerClosed(c)

	for _, e := range append([]*Entity(nil), c.order...) {
		e.destroying = true
		for _, p := range e.props {
			p.Unbind()
		}
		e.attached = false
		delete(c.sess.arena, e.id)
	}
	c.entities = map[string]*Entity{}
	c.order = nil
	delete(c.sess.containers, c.name)
}

func containsAny(s, chars string) bool {
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(chars); j++ {
			if s[i] == chars[j] {
				return true
			}
		}
	}
	return false
}

func newContainer(sess *Session, name string) *Container {
	return &Container{
		sess:     sess,
		name:     name,
		uid:      uuid.New().String(),
		entities: make(map[string]*Entity),
	}
}
