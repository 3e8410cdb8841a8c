// Package ooxml reads and writes Office Open XML packages: the zip
// container, its part relationships and content types, and a small typed
// builder for the XML the document backends generate.
package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/waftester/reportforge/pkg/bufpool"
	"github.com/waftester/reportforge/pkg/reporterr"
)

// ContentTypesPart is the name of the content types part.
const ContentTypesPart = "[Content_Types].xml"

// ErrPartNotFound is returned when a required part is absent.
var ErrPartNotFound = errors.New("ooxml: part not found")

// Package is an OOXML package held in memory. Parts keep their original
// order; new parts are appended.
type Package struct {
	parts map[string][]byte
	order []string
}

// New returns an empty package.
func New() *Package {
	return &Package{parts: make(map[string][]byte)}
}

// Open reads a package from data. Invalid zip data is reported as
// reporterr.ErrInvalidTemplateDocument.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reporterr.ErrInvalidTemplateDocument, err)
	}
	p := New()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", reporterr.ErrInvalidTemplateDocument, f.Name, err)
		}
		p.SetPart(f.Name, content)
	}
	if !p.Has(ContentTypesPart) {
		return nil, fmt.Errorf("%w: missing %s", reporterr.ErrInvalidTemplateDocument, ContentTypesPart)
	}
	return p, nil
}

// OpenFile reads the package at path. A missing file is reported as
// reporterr.ErrTemplateNotFound.
func OpenFile(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", reporterr.ErrTemplateNotFound, path)
		}
		return nil, err
	}
	p, err := Open(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Has reports whether the package contains part name.
func (p *Package) Has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

// Part returns the content of part name.
func (p *Package) Part(name string) ([]byte, bool) {
	data, ok := p.parts[name]
	return data, ok
}

// MustPart returns the content of part name or ErrPartNotFound.
func (p *Package) MustPart(name string) ([]byte, error) {
	data, ok := p.parts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, name)
	}
	return data, nil
}

// SetPart stores data as part name.
func (p *Package) SetPart(name string, data []byte) {
	name = strings.TrimPrefix(name, "/")
	if _, ok := p.parts[name]; !ok {
		p.order = append(p.order, name)
	}
	p.parts[name] = data
}

// Parts returns the part names in package order.
func (p *Package) Parts() []string {
	return append([]string(nil), p.order...)
}

// Match returns the part names matching the shell pattern, sorted.
func (p *Package) Match(pattern string) []string {
	var out []string
	for _, name := range p.order {
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Bytes writes the package as a zip archive. The content types part is
// written first.
func (p *Package) Bytes() ([]byte, error) {
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	zw := zip.NewWriter(buf)

	names := make([]string, 0, len(p.order))
	if p.Has(ContentTypesPart) {
		names = append(names, ContentTypesPart)
	}
	for _, name := range p.order {
		if name != ContentTypesPart {
			names = append(names, name)
		}
	}
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("ooxml: writing %s: %w", name, err)
		}
		if _, err := w.Write(p.parts[name]); err != nil {
			return nil, fmt.Errorf("ooxml: writing %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("ooxml: closing package: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}
