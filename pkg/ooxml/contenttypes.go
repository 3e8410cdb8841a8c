package ooxml

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// ContentTypes is the [Content_Types].xml part.
type ContentTypes struct {
	XMLName   xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []TypeDefault  `xml:"Default"`
	Overrides []TypeOverride `xml:"Override"`
}

// TypeDefault maps a file extension to a content type.
type TypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// TypeOverride gives one part its content type.
type TypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypes parses the content types part.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	ct := &ContentTypes{}
	data, ok := p.Part(ContentTypesPart)
	if !ok {
		return ct, nil
	}
	if err := xml.Unmarshal(data, ct); err != nil {
		return nil, fmt.Errorf("ooxml: parsing %s: %w", ContentTypesPart, err)
	}
	return ct, nil
}

func (p *Package) setContentTypes(ct *ContentTypes) error {
	data, err := xml.Marshal(ct)
	if err != nil {
		return fmt.Errorf("ooxml: encoding %s: %w", ContentTypesPart, err)
	}
	p.SetPart(ContentTypesPart, append([]byte(Header), data...))
	return nil
}

// EnsureDefault registers a content type for an extension unless one is
// already registered.
func (p *Package) EnsureDefault(ext, contentType string) error {
	ct, err := p.ContentTypes()
	if err != nil {
		return err
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, d := range ct.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return nil
		}
	}
	ct.Defaults = append(ct.Defaults, TypeDefault{Extension: ext, ContentType: contentType})
	return p.setContentTypes(ct)
}

// EnsureOverride gives part its content type, replacing an existing
// override.
func (p *Package) EnsureOverride(part, contentType string) error {
	ct, err := p.ContentTypes()
	if err != nil {
		return err
	}
	name := "/" + strings.TrimPrefix(part, "/")
	for i, o := range ct.Overrides {
		if o.PartName == name {
			if o.ContentType == contentType {
				return nil
			}
			ct.Overrides[i].ContentType = contentType
			return p.setContentTypes(ct)
		}
	}
	ct.Overrides = append(ct.Overrides, TypeOverride{PartName: name, ContentType: contentType})
	return p.setContentTypes(ct)
}

// PartsOfType returns the part names overridden with contentType.
func (ct *ContentTypes) PartsOfType(contentType string) []string {
	var out []string
	for _, o := range ct.Overrides {
		if o.ContentType == contentType {
			out = append(out, strings.TrimPrefix(o.PartName, "/"))
		}
	}
	return out
}
