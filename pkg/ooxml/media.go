package ooxml

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

var mediaTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// MediaType returns the content type of an image extension.
func MediaType(ext string) (string, bool) {
	ct, ok := mediaTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ct, ok
}

// AddMedia stores an image under dir ("word/media") named after the hash
// of its content, so the same file embedded twice is stored once. It
// returns the part name.
func (p *Package) AddMedia(dir, ext string, data []byte) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	ct, ok := MediaType(ext)
	if !ok {
		return "", fmt.Errorf("ooxml: unsupported media type %q", ext)
	}
	h1, h2 := murmur3.Sum128(data)
	name := fmt.Sprintf("%s/image-%016x%016x.%s", strings.TrimSuffix(dir, "/"), h1, h2, ext)
	if !p.Has(name) {
		p.SetPart(name, data)
	}
	if err := p.EnsureDefault(ext, ct); err != nil {
		return "", err
	}
	return name, nil
}
