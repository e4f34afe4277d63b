package graph

import (
	"fmt"
	"io"
	"os"

	"github.com/tetherworks/tether/pkg/tagio"
)

// SaveContainer writes c and everything it contains to w: entity
// declarations first, then per-entity property data. Encoding the same
// state twice produces identical bytes.
func SaveContainer(w io.Writer, c *Container) error {
	if c == nil || c.closed {
		return ErrContainerClosed
	}
	tw := tagio.NewWriter(w)
	tw.Start("Container",
		tagio.String("name", c.name),
		tagio.String("uid", c.uid),
		tagio.String("stamp", c.stamp),
		tagio.Int("count", len(c.order)))
	for _, e := range c.order {
		saveEntityDecl(tw, e)
	}
	for _, e := range c.order {
		tw.Start("Data",
			tagio.String("entity", e.ExportName()),
			tagio.Int("count", len(e.props)))
		for _, p := range e.props {
			p.Save(tw)
		}
		tw.End("Data")
	}
	tw.End("Container")
	return tw.Flush()
}

func saveEntityDecl(w *tagio.Writer, e *Entity) {
	attrs := []tagio.Attr{tagio.String("name", e.ExportName())}
	if e.label != "" {
		attrs = append(attrs, tagio.String("label", e.label))
	}
	attrs = append(attrs,
		tagio.Int("elements", len(e.elements)),
		tagio.Int("children", len(e.children)))
	w.Start("Entity", attrs...)
	for _, el := range e.elements {
		if el.Mapped != "" {
			w.Empty("Element", tagio.String("name", el.Name), tagio.String("mapped", el.Mapped))
		} else {
			w.Empty("Element", tagio.String("name", el.Name))
		}
	}
	for _, ch := range e.children {
		w.Empty("Child", tagio.String("name", ch.ExportName()))
	}
	w.End("Entity")
}

// SaveContainerFile writes c to path and records path as its save
// location, advancing the modification stamp.
func SaveContainerFile(c *Container, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := SaveContainer(f, c); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close container: %w", err)
	}
	c.MarkSaved(path)
	return nil
}

// LoadContainer reads a container written by SaveContainer into sess.
// Entities are created in a first pass so restored references resolve
// regardless of declaration order; completion fixups (deferred labels,
// reverse element resolution, external attachment) run through
// Session.FinishRestore before returning. Recoverable conditions land
// in the Report, hard format errors in the error.
func LoadContainer(sess *Session, r io.Reader) (*Container, *Report, error) {
	c, rep, err := parseContainer(sess, r)
	if err != nil {
		return c, rep, err
	}
	done := sess.FinishRestore(c)
	rep.Diags = append(rep.Diags, done.Diags...)
	return c, rep, nil
}

// LoadContainerFile loads the container stored at path, recording path
// as its save location so relative external references key correctly.
func LoadContainerFile(sess *Session, path string) (*Container, *Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open container: %w", err)
	}
	defer f.Close()
	c, rep, err := parseContainer(sess, f)
	if err != nil {
		return c, rep, err
	}
	c.filePath = path
	done := sess.FinishRestore(c)
	rep.Diags = append(rep.Diags, done.Diags...)
	return c, rep, nil
}

func parseContainer(sess *Session, r io.Reader) (*Container, *Report, error) {
	rd := tagio.NewReader(r)
	rec, err := rd.Element("Container")
	if err != nil {
		return nil, nil, err
	}
	c, err := sess.NewContainer(rec.Attr("name"))
	if err != nil {
		return nil, nil, err
	}
	if uid := rec.Attr("uid"); uid != "" {
		c.uid = uid
	}
	c.stamp = rec.Attr("stamp")
	c.restoring = true
	rep := sess.NewReport()

	count := rec.IntAttr("count")
	children := make(map[*Entity][]string, count)
	for i := 0; i < count; i++ {
		decl, err := rd.Element("Entity")
		if err != nil {
			return nil, rep, err
		}
		e, err := c.NewEntity(decl.Attr("name"))
		if err != nil {
			return nil, rep, err
		}
		e.restoring = true
		e.label = decl.Attr("label")
		for j := 0; j < decl.IntAttr("elements"); j++ {
			el, err := rd.Element("Element")
			if err != nil {
				return nil, rep, err
			}
			e.AddElement(el.Attr("name"), el.Attr("mapped"))
		}
		for j := 0; j < decl.IntAttr("children"); j++ {
			ch, err := rd.Element("Child")
			if err != nil {
				return nil, rep, err
			}
			children[e] = append(children[e], ch.Attr("name"))
		}
		if err := rd.End("Entity"); err != nil {
			return nil, rep, err
		}
	}
	for e, names := range children {
		for _, name := range names {
			child := c.Entity(name)
			if child == nil {
				rep.Warnf(nil, "entity %q lists unknown child %q", e.Name(), name)
				continue
			}
			e.AddChild(child)
		}
	}

	for i := 0; i < count; i++ {
		data, err := rd.Element("Data")
		if err != nil {
			return nil, rep, err
		}
		e := c.Entity(data.Attr("entity"))
		if e == nil {
			rep.Warnf(nil, "property data for unknown entity %q skipped", data.Attr("entity"))
			if err := rd.End("Data"); err != nil {
				return nil, rep, err
			}
			continue
		}
		for j := 0; j < data.IntAttr("count"); j++ {
			prec, err := rd.Next("Data")
			if err != nil {
				return nil, rep, err
			}
			if prec == nil {
				break
			}
			if err := restoreProperty(e, rd, prec, rep); err != nil {
				return nil, rep, err
			}
		}
		if err := rd.End("Data"); err != nil {
			return nil, rep, err
		}
	}
	if err := rd.End("Container"); err != nil {
		return nil, rep, err
	}
	return c, rep, nil
}

// restoreProperty creates the property named by rec on e and restores
// its value. Records with an unknown tag are skipped so newer formats
// stay loadable.
func restoreProperty(e *Entity, rd *tagio.Reader, rec *tagio.Record, rep *Report) error {
	name := rec.Attr("name")
	if name == "" {
		rep.Warnf(nil, "unnamed %s record on %s skipped", rec.Tag, e.FullName())
		return rd.End(rec.Tag)
	}
	switch rec.Tag {
	case "Ref":
		return NewRef(e, name, ScopeNormal).restoreRecord(rd, rec, rep)
	case "RefList":
		return NewRefList(e, name, ScopeNormal).restoreRecord(rd, rec, rep)
	case "SubRef":
		return NewSubRef(e, name, ScopeNormal).restoreRecord(rd, rec, rep)
	case "SubRefList":
		return NewSubRefList(e, name, ScopeNormal).restoreRecord(rd, rec, rep)
	case "XRef":
		x := NewXRef(e, name, ScopeNormal)
		if err := x.restoreRecord(rd, rec, rep); err != nil {
			return err
		}
		return rd.End("XRef")
	case "XRefList":
		return NewXRefList(e, name, ScopeNormal).restoreRecord(rd, rec, rep)
	default:
		rep.Warnf(nil, "unknown property record %q on %s skipped", rec.Tag, e.FullName())
		return rd.End(rec.Tag)
	}
}
