package ooxml

import (
	"encoding/xml"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Namespaces used by the generated markup.
const (
	NSRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	NSWordML        = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSOfficeRels    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSDrawingML     = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPicture       = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NSWordDrawing   = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NSPresentation  = "http://schemas.openxmlformats.org/presentationml/2006/main"
)

// Relationship types.
const (
	RelImage        = NSOfficeRels + "/image"
	RelHyperlink    = NSOfficeRels + "/hyperlink"
	RelFootnotes    = NSOfficeRels + "/footnotes"
	RelNumbering    = NSOfficeRels + "/numbering"
	RelStyles       = NSOfficeRels + "/styles"
	RelSlide        = NSOfficeRels + "/slide"
	RelSlideLayout  = NSOfficeRels + "/slideLayout"
	RelNotesSlide   = NSOfficeRels + "/notesSlide"
	RelOfficeDoc    = NSOfficeRels + "/officeDocument"
	TargetModeExt   = "External"
	relsContentType = "application/vnd.openxmlformats-package.relationships+xml"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships is a .rels part.
type Relationships struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Items   []Relationship `xml:"Relationship"`
}

// RelsPath returns the relationships part of part: word/document.xml has
// its relationships in word/_rels/document.xml.rels.
func RelsPath(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}

// Rels reads the relationships of part. A part without relationships
// yields an empty set.
func (p *Package) Rels(part string) (*Relationships, error) {
	data, ok := p.Part(RelsPath(part))
	if !ok {
		return &Relationships{}, nil
	}
	r := &Relationships{}
	if err := xml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("ooxml: parsing %s: %w", RelsPath(part), err)
	}
	return r, nil
}

// SetRels writes the relationships of part.
func (p *Package) SetRels(part string, r *Relationships) error {
	data, err := xml.Marshal(r)
	if err != nil {
		return fmt.Errorf("ooxml: encoding %s: %w", RelsPath(part), err)
	}
	p.SetPart(RelsPath(part), append([]byte(Header), data...))
	return p.EnsureDefault("rels", relsContentType)
}

// Add allocates the next free rIdN and appends the relationship. Internal
// targets are relative to the source part's directory.
func (r *Relationships) Add(typ, target, mode string) string {
	id := "rId" + strconv.Itoa(r.maxID()+1)
	r.Items = append(r.Items, Relationship{ID: id, Type: typ, Target: target, TargetMode: mode})
	return id
}

// Ensure returns the ID of an existing relationship with the same type and
// target, adding one when none exists.
func (r *Relationships) Ensure(typ, target, mode string) string {
	if id, ok := r.Find(typ, target); ok {
		return id
	}
	return r.Add(typ, target, mode)
}

// Find returns the ID of the relationship with the given type and target.
func (r *Relationships) Find(typ, target string) (string, bool) {
	for _, rel := range r.Items {
		if rel.Type == typ && rel.Target == target {
			return rel.ID, true
		}
	}
	return "", false
}

// ByType returns the relationships of the given type in order.
func (r *Relationships) ByType(typ string) []Relationship {
	var out []Relationship
	for _, rel := range r.Items {
		if rel.Type == typ {
			out = append(out, rel)
		}
	}
	return out
}

// Get returns the relationship with id.
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, rel := range r.Items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

func (r *Relationships) maxID() int {
	highest := 0
	for _, rel := range r.Items {
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// ResolveTarget returns the part name a relative target of source points
// to.
func ResolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(source), target)
}
