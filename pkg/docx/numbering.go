package docx

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/waftester/reportforge/pkg/ooxml"
)

// levelKind is how one list level is numbered.
type levelKind uint8

const (
	levelUnset levelKind = iota
	levelBullet
	levelOrdered
)

// maxListLevel is the deepest level WordprocessingML defines.
const maxListLevel = 8

// listShape is the ordered/unordered choice of every level a list uses,
// indexed by level. A numbering definition is declared per level, not per
// paragraph, so the whole shape is known before the definition is chosen.
type listShape []levelKind

// see records level as ordered or not. The first item seen at a level
// decides it.
func (s *listShape) see(level int, ordered bool) {
	level = min(max(level, 0), maxListLevel)
	for len(*s) <= level {
		*s = append(*s, levelUnset)
	}
	if (*s)[level] != levelUnset {
		return
	}
	if ordered {
		(*s)[level] = levelOrdered
	} else {
		(*s)[level] = levelBullet
	}
}

// kind returns the kind of level. Levels the list never used inherit the
// nearest shallower level, defaulting to bullets.
func (s listShape) kind(level int) levelKind {
	for l := min(level, len(s)-1); l >= 0; l-- {
		if s[l] != levelUnset {
			return s[l]
		}
	}
	return levelBullet
}

// key identifies structurally identical lists.
func (s listShape) key() string {
	var sb strings.Builder
	for l := 0; l <= maxListLevel; l++ {
		if s.kind(l) == levelOrdered {
			sb.WriteByte('o')
		} else {
			sb.WriteByte('b')
		}
	}
	return sb.String()
}

// bulletGlyph is the Symbol-font bullet Word itself uses.
const bulletGlyph = "\uf0b7"

// numbering tracks the numbering part: the template's definitions plus
// the ones synthesized for this document's lists, cached by shape.
type numbering struct {
	src          []byte
	nextAbstract int
	nextNum      int
	byShape      map[string]int
	abstracts    []*ooxml.Element
	nums         []*ooxml.Element
}

var (
	abstractIDRe = regexp.MustCompile(`\bw:abstractNumId="(\d+)"`)
	numIDRe      = regexp.MustCompile(`<w:num\b[^>]*\bw:numId="(\d+)"`)
)

func newNumbering(src []byte) *numbering {
	n := &numbering{src: src, byShape: make(map[string]int)}
	n.nextAbstract = maxMatch(abstractIDRe, src) + 1
	n.nextNum = maxMatch(numIDRe, src) + 1
	if len(src) == 0 {
		n.nextAbstract = 0
	}
	return n
}

// id returns the numbering instance for shape, synthesizing an abstract
// definition and an instance the first time a shape is seen.
func (n *numbering) id(shape listShape) int {
	key := shape.key()
	if id, ok := n.byShape[key]; ok {
		return id
	}
	abstractID := n.nextAbstract
	n.nextAbstract++
	numID := n.nextNum
	n.nextNum++

	n.abstracts = append(n.abstracts, abstractNum(abstractID, shape))
	n.nums = append(n.nums, ooxml.E("w:num", ooxml.A("w:numId", strconv.Itoa(numID)),
		ooxml.E("w:abstractNumId", ooxml.A("w:val", strconv.Itoa(abstractID))),
	))
	n.byShape[key] = numID
	return numID
}

func abstractNum(id int, shape listShape) *ooxml.Element {
	an := ooxml.E("w:abstractNum", ooxml.A("w:abstractNumId", strconv.Itoa(id)),
		ooxml.E("w:nsid", ooxml.A("w:val", fmt.Sprintf("%08X", murmur3.Sum32([]byte(shape.key()+strconv.Itoa(id)))))),
		ooxml.E("w:multiLevelType", ooxml.A("w:val", "hybridMultilevel")),
	)
	for l := 0; l <= maxListLevel; l++ {
		indent := strconv.Itoa((l + 1) * 720)
		lvl := ooxml.E("w:lvl", ooxml.A("w:ilvl", strconv.Itoa(l)),
			ooxml.E("w:start", ooxml.A("w:val", "1")),
		)
		if shape.kind(l) == levelOrdered {
			lvl.Add(
				ooxml.E("w:numFmt", ooxml.A("w:val", "decimal")),
				ooxml.E("w:lvlText", ooxml.A("w:val", "%"+strconv.Itoa(l+1)+".")),
				ooxml.E("w:lvlJc", ooxml.A("w:val", "left")),
				ooxml.E("w:pPr", ooxml.E("w:ind", ooxml.A("w:left", indent), ooxml.A("w:hanging", "360"))),
			)
		} else {
			lvl.Add(
				ooxml.E("w:numFmt", ooxml.A("w:val", "bullet")),
				ooxml.E("w:lvlText", ooxml.A("w:val", bulletGlyph)),
				ooxml.E("w:lvlJc", ooxml.A("w:val", "left")),
				ooxml.E("w:pPr", ooxml.E("w:ind", ooxml.A("w:left", indent), ooxml.A("w:hanging", "360"))),
				ooxml.E("w:rPr", ooxml.E("w:rFonts",
					ooxml.A("w:ascii", "Symbol"), ooxml.A("w:hAnsi", "Symbol"), ooxml.A("w:hint", "default"))),
			)
		}
		an.Add(lvl)
	}
	return an
}

const numberingRoot = `<w:numbering xmlns:w="` + ooxml.NSWordML + `">`

// render returns the numbering part with the synthesized definitions.
// Abstract definitions must precede every w:num, so they are inserted
// before the first instance; instances go before w:numIdMacAtCleanup or
// the closing tag.
func (n *numbering) render() ([]byte, bool) {
	if len(n.abstracts) == 0 {
		return n.src, false
	}
	src := n.src
	closing := []byte("</w:numbering>")
	if !bytes.Contains(src, closing) {
		src = []byte(ooxml.Header + numberingRoot + "</w:numbering>")
	}

	abstracts := []byte(ooxml.Serialize(n.abstracts))
	nums := []byte(ooxml.Serialize(n.nums))

	at := firstIndex(src, "<w:num ", "<w:num>")
	if at < 0 {
		at = bytes.LastIndex(src, closing)
	}
	src = insert(src, at, abstracts)

	at = firstIndex(src, "<w:numIdMacAtCleanup")
	if at < 0 {
		at = bytes.LastIndex(src, closing)
	}
	return insert(src, at, nums), true
}

// firstIndex returns the earliest position of any of subs in s, or -1.
func firstIndex(s []byte, subs ...string) int {
	best := -1
	for _, sub := range subs {
		if i := bytes.Index(s, []byte(sub)); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

func insert(s []byte, at int, data []byte) []byte {
	out := make([]byte, 0, len(s)+len(data))
	out = append(out, s[:at]...)
	out = append(out, data...)
	return append(out, s[at:]...)
}
