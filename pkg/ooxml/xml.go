package ooxml

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// Node is anything that can appear inside an Element.
type Node interface {
	writeXML(w *bytes.Buffer)
}

// Attr is a qualified attribute such as w:val="single".
type Attr struct {
	Name  string
	Value string
}

// A builds an attribute.
func A(name, value string) Attr { return Attr{Name: name, Value: value} }

// Text is character data. It is escaped on output.
type Text string

func (t Text) writeXML(w *bytes.Buffer) { escape(w, string(t)) }

// Raw is pre-serialized markup copied to the output unchanged.
type Raw string

func (r Raw) writeXML(w *bytes.Buffer) { w.WriteString(string(r)) }

// Element is a qualified XML element. Names carry their prefix ("w:p");
// namespace declarations are ordinary attributes.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []Node
}

// E builds an element. Items may be Attr, Node, []*Element or nil; any
// other value panics.
func E(name string, items ...any) *Element {
	e := &Element{Name: name}
	return e.Add(items...)
}

// Add appends attributes and children to e and returns e.
func (e *Element) Add(items ...any) *Element {
	for _, it := range items {
		switch v := it.(type) {
		case nil:
		case Attr:
			e.Set(v.Name, v.Value)
		case *Element:
			if v != nil {
				e.Children = append(e.Children, v)
			}
		case []*Element:
			for _, c := range v {
				if c != nil {
					e.Children = append(e.Children, c)
				}
			}
		case Node:
			e.Children = append(e.Children, v)
		default:
			panic("ooxml: unsupported element item")
		}
	}
	return e
}

// Prepend inserts children before the existing ones.
func (e *Element) Prepend(children ...*Element) *Element {
	nodes := make([]Node, 0, len(children)+len(e.Children))
	for _, c := range children {
		nodes = append(nodes, c)
	}
	e.Children = append(nodes, e.Children...)
	return e
}

// Set sets attribute name, replacing an existing value.
func (e *Element) Set(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// Get returns the value of attribute name.
func (e *Element) Get(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Find returns the first child element called name.
func (e *Element) Find(name string) *Element {
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok && el.Name == name {
			return el
		}
	}
	return nil
}

// FindOrPrepend returns the first child called name, creating it as the
// first child when absent. Property elements such as w:pPr must come first.
func (e *Element) FindOrPrepend(name string) *Element {
	if el := e.Find(name); el != nil {
		return el
	}
	el := E(name)
	e.Prepend(el)
	return el
}

// Elements returns the child elements of e.
func (e *Element) Elements() []*Element {
	var out []*Element
	for _, c := range e.Children {
		if el, ok := c.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// Text returns the concatenated character data below e.
func (e *Element) Text() string {
	var sb strings.Builder
	var walk func(*Element)
	walk = func(el *Element) {
		for _, c := range el.Children {
			switch v := c.(type) {
			case Text:
				sb.WriteString(string(v))
			case *Element:
				walk(v)
			}
		}
	}
	walk(e)
	return sb.String()
}

func (e *Element) writeXML(w *bytes.Buffer) {
	w.WriteByte('<')
	w.WriteString(e.Name)
	for _, a := range e.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		escape(w, a.Value)
		w.WriteByte('"')
	}
	if len(e.Children) == 0 {
		w.WriteString("/>")
		return
	}
	w.WriteByte('>')
	for _, c := range e.Children {
		c.writeXML(w)
	}
	w.WriteString("</")
	w.WriteString(e.Name)
	w.WriteByte('>')
}

// String serializes e.
func (e *Element) String() string {
	var buf bytes.Buffer
	e.writeXML(&buf)
	return buf.String()
}

// WriteTo serializes e to w.
func (e *Element) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	e.writeXML(&buf)
	return buf.WriteTo(w)
}

// Serialize concatenates the serialization of elems.
func Serialize(elems []*Element) string {
	var buf bytes.Buffer
	for _, e := range elems {
		e.writeXML(&buf)
	}
	return buf.String()
}

// Escape returns s escaped for use as character data or an attribute
// value.
func Escape(s string) string {
	var buf bytes.Buffer
	escape(&buf, s)
	return buf.String()
}

func escape(w *bytes.Buffer, s string) {
	// EscapeText only fails on writer errors; bytes.Buffer has none.
	_ = xml.EscapeText(w, []byte(s))
}

// Header is the XML declaration OOXML parts start with.
const Header = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
