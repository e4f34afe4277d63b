package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// RestoreStatus classifies the staleness of an external reference after
// a restore cycle.
type RestoreStatus int

const (
	// RestoreOK means the referenced container is loaded and its file
	// is unchanged since the reference was saved.
	RestoreOK RestoreStatus = iota
	// RestoreStampChanged means the referenced container is loaded but
	// was saved again since this reference last recorded its stamp.
	RestoreStampChanged
	// RestoreMissing means the referenced container is not loaded.
	RestoreMissing
)

// docInfo tracks one external container path. All external references
// into the same path share one descriptor; the descriptor dies when its
// last reference releases it.
type docInfo struct {
	sess *Session
	key  string
	path string

	container *Container
	stamp     string
	modified  bool

	refs map[*XRef]struct{}
}

// docInfoKey normalizes an external path relative to the referencing
// container's save location. URI-style paths are opaque keys and are
// never joined or cleaned.
func docInfoKey(owner *Container, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty external path", ErrInvalidName)
	}
	if strings.Contains(path, "://") {
		return path, nil
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if owner == nil || owner.FilePath() == "" {
		return "", fmt.Errorf("%w: relative external path %q", ErrContainerNotSaved, path)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(owner.FilePath()), path)), nil
}

// acquireDocInfo returns the descriptor for path as seen from owner,
// creating it on first use. An unattached descriptor queues a pending
// load; an attached partial container missing targetName queues a
// fuller load.
func (s *Session) acquireDocInfo(owner *Container, path, targetName string, ref *XRef) (*docInfo, error) {
	key, err := docInfoKey(owner, path)
	if err != nil {
		return nil, err
	}
	info := s.docInfos[key]
	if info == nil {
		info = &docInfo{sess: s, key: key, path: path, refs: make(map[*XRef]struct{})}
		s.docInfos[key] = info
		if c := s.containerByPath(key); c != nil {
			info.attach(c)
		}
		s.watchPath(key)
	}
	switch {
	case info.container == nil:
		if s.loader != nil {
			s.loader.RequestPendingLoad(key, targetName, true)
		}
	case info.container.Partial() && targetName != "" && info.container.Entity(targetName) == nil:
		if s.loader != nil {
			s.loader.RequestPendingLoad(key, targetName, false)
		}
	}
	info.refs[ref] = struct{}{}
	return info, nil
}

func (info *docInfo) attach(c *Container) {
	info.container = c
	info.stamp = c.Stamp()
	info.modified = false
	if info.sess.watcher != nil {
		info.sess.watcher.Reset(info.key)
	}
}

func (info *docInfo) release(ref *XRef) {
	delete(info.refs, ref)
	if len(info.refs) == 0 {
		delete(info.sess.docInfos, info.key)
		info.sess.unwatchPath(info.key)
	}
}

func (info *docInfo) sortedRefs() []*XRef {
	out := make([]*XRef, 0, len(info.refs))
	for ref := range info.refs {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		return propertyName(out[i]) < propertyName(out[j])
	})
	return out
}

// notifyRestored dispatches the attach to each referencing property
// once, routing list elements through their aggregating list so a group
// of entries into the same path attaches under one notification.
func (info *docInfo) notifyRestored(c *Container, rep *Report) {
	seen := make(map[Property]struct{})
	for _, ref := range info.sortedRefs() {
		p := ref.prop()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		p.OnContainerRestored(c, rep)
	}
}

func (s *Session) containerByPath(key string) *Container {
	for _, c := range s.containers {
		if c.filePath == "" {
			continue
		}
		if ck, err := docInfoKey(nil, c.filePath); err == nil && ck == key {
			return c
		}
	}
	return nil
}

// containerSaved refreshes descriptors after c was written to disk: its
// own descriptor stamp advances, and descriptors whose key now matches
// c's save location attach.
func (s *Session) containerSaved(c *Container) {
	for _, info := range s.docInfos {
		switch {
		case info.container == c:
			info.stamp = c.Stamp()
			info.modified = false
			if s.watcher != nil {
				s.watcher.Reset(info.key)
			}
		case info.container == nil:
			if ck, err := docInfoKey(nil, c.filePath); err == nil && ck == info.key {
				info.attach(c)
				info.notifyRestored(c, s.NewReport())
			}
		}
	}
}

// containerClosed detaches every external reference into c, keeping the
// symbolic target names for later reattachment.
func (s *Session) containerClosed(c *Container) {
	for _, info := range s.docInfos {
		if info.container != c {
			continue
		}
		info.container = nil
		for _, ref := range info.sortedRefs() {
			ref.detachContainer()
		}
	}
}

// breakExternalLinks clears external references to target held anywhere
// in the session. With clear set, references owned by target are cleared
// too.
func (s *Session) breakExternalLinks(target *Entity, clear bool) {
	for _, info := range s.docInfos {
		for _, ref := range info.sortedRefs() {
			ref.Break(target, clear)
		}
	}
}

// FinishRestore completes a container load: every property runs its
// post-restore fixups, then pending external references into c attach
// and complete theirs. Returns the collected diagnostics.
func (s *Session) FinishRestore(c *Container) *Report {
	rep := s.NewReport()
	if c == nil {
		return rep
	}
	c.restoring = false
	for _, e := range c.Entities() {
		e.restoring = false
	}
	for _, e := range c.Entities() {
		for _, p := range e.Properties() {
			p.AfterRestore(rep)
		}
	}
	if c.filePath != "" {
		key, err := docInfoKey(nil, c.filePath)
		if err == nil {
			if info := s.docInfos[key]; info != nil && info.container == nil {
				info.attach(c)
				info.notifyRestored(c, rep)
			}
		}
	}
	return rep
}
