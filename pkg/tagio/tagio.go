// Package tagio reads and writes tagged records: named elements carrying
// ordered string attributes and optional child records. The writer emits a
// deterministic XML rendering so that encoding the same state twice
// produces identical bytes; the reader tolerates unknown attributes and
// unknown elements, which later format versions may add.
package tagio

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Attr is one attribute of a record. Attribute order is significant for
// the writer (it is preserved in the output) and ignored by the reader.
type Attr struct {
	Name  string
	Value string
}

// String returns an Attr with the given string value.
func String(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// Int returns an Attr with the decimal rendering of value.
func Int(name string, value int) Attr {
	return Attr{Name: name, Value: strconv.Itoa(value)}
}

// attrEscaper rewrites characters that cannot appear raw inside a
// double-quoted attribute value.
var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// Writer emits tagged records to an underlying stream. Errors are sticky:
// the first write error is retained and reported by Err and Flush.
type Writer struct {
	w     *bufio.Writer
	depth int
	err   error
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) indent() {
	for i := 0; i < w.depth; i++ {
		w.write("  ")
	}
}

func (w *Writer) write(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

func (w *Writer) attrs(attrs []Attr) {
	for _, a := range attrs {
		w.write(" ")
		w.write(a.Name)
		w.write(`="`)
		w.write(attrEscaper.Replace(a.Value))
		w.write(`"`)
	}
}

// Start opens a record that will contain child records. Close it with End.
func (w *Writer) Start(tag string, attrs ...Attr) {
	w.indent()
	w.write("<")
	w.write(tag)
	w.attrs(attrs)
	w.write(">\n")
	w.depth++
}

// End closes a record opened with Start.
func (w *Writer) End(tag string) {
	if w.depth > 0 {
		w.depth--
	}
	w.indent()
	w.write("</")
	w.write(tag)
	w.write(">\n")
}

// Empty writes a childless record.
func (w *Writer) Empty(tag string, attrs ...Attr) {
	w.indent()
	w.write("<")
	w.write(tag)
	w.attrs(attrs)
	w.write("/>\n")
}

// Err returns the first error encountered while writing.
func (w *Writer) Err() error {
	return w.err
}

// Flush writes buffered output to the underlying stream.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

// Record is one decoded element with its attributes.
type Record struct {
	Tag   string
	attrs map[string]string
}

// Has reports whether the record carries the named attribute.
func (r *Record) Has(name string) bool {
	_, ok := r.attrs[name]
	return ok
}

// Attr returns the named attribute value, or "" when absent.
func (r *Record) Attr(name string) string {
	return r.attrs[name]
}

// IntAttr returns the named attribute parsed as a decimal integer, or 0
// when absent or malformed.
func (r *Record) IntAttr(name string) int {
	n, err := strconv.Atoi(r.attrs[name])
	if err != nil {
		return 0
	}
	return n
}

// Reader decodes a stream of tagged records. It optionally carries a name
// map applied by MapName, used when records are restored into a namespace
// where identifiers were renamed (import).
type Reader struct {
	d       *xml.Decoder
	nameMap map[string]string
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{d: xml.NewDecoder(r)}
}

// SetNameMap installs an identifier remap table consulted by MapName.
func (r *Reader) SetNameMap(m map[string]string) {
	r.nameMap = m
}

// Mapping reports whether a name map is installed.
func (r *Reader) Mapping() bool {
	return r.nameMap != nil
}

// MapName returns the remapped identifier, or name itself when no mapping
// applies.
func (r *Reader) MapName(name string) string {
	if mapped, ok := r.nameMap[name]; ok {
		return mapped
	}
	return name
}

// Element skips tokens until the next start element named tag and returns
// its record. It fails when the stream ends or a surrounding element
// closes first.
func (r *Reader) Element(tag string) (*Record, error) {
	for {
		tok, err := r.d.Token()
		if err != nil {
			return nil, fmt.Errorf("reading element %q: %w", tag, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != tag {
			// Unknown element; skip its subtree rather than reject.
			if err := r.d.Skip(); err != nil {
				return nil, fmt.Errorf("skipping element %q: %w", start.Name.Local, err)
			}
			continue
		}
		rec := &Record{Tag: tag, attrs: make(map[string]string, len(start.Attr))}
		for _, a := range start.Attr {
			rec.attrs[a.Name.Local] = a.Value
		}
		return rec, nil
	}
}

// Next returns the next start element regardless of its tag, or nil when
// the surrounding element named parent closes first.
func (r *Reader) Next(parent string) (*Record, error) {
	for {
		tok, err := r.d.Token()
		if err != nil {
			return nil, fmt.Errorf("reading next element in %q: %w", parent, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			rec := &Record{Tag: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				rec.attrs[a.Name.Local] = a.Value
			}
			return rec, nil
		case xml.EndElement:
			if t.Name.Local == parent {
				return nil, nil
			}
		}
	}
}

// End skips tokens until the end element named tag.
func (r *Reader) End(tag string) error {
	depth := 0
	for {
		tok, err := r.d.Token()
		if err != nil {
			return fmt.Errorf("reading end of %q: %w", tag, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 && t.Name.Local == tag {
				return nil
			}
			if depth > 0 {
				depth--
			}
		}
	}
}
