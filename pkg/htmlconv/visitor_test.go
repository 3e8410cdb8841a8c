package htmlconv

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/templating"
)

func convert(t *testing.T, src string) []string {
	t.Helper()
	rec := &recorder{}
	require.NoError(t, Convert(src, rec, Options{Evidence: finding.NewEvidenceSet([]finding.Evidence{
		{FriendlyName: "Shot", Path: "shot.png"},
	})}))
	return rec.events
}

func assertEvents(t *testing.T, src string, want ...string) {
	t.Helper()
	if diff := cmp.Diff(want, convert(t, src)); diff != "" {
		t.Errorf("events for %q mismatch (-want +got):\n%s", src, diff)
	}
}

// visibleText renders a conversion as text, with "/" for line breaks and
// "|" closing each paragraph.
func visibleText(t *testing.T, src string) string {
	t.Helper()
	rec := &textOnly{}
	require.NoError(t, Convert(src, rec, Options{}))
	return rec.sb.String()
}

type textOnly struct {
	recorder
	sb strings.Builder
}

func (r *textOnly) Text(text string, _ Style) { r.sb.WriteString(text) }

func (r *textOnly) LineBreak() { r.sb.WriteString("/") }

func (r *textOnly) EndParagraph() { r.sb.WriteString("|") }

func TestWhitespaceCollapsing(t *testing.T) {
	assertEvents(t, "<p>  Found   in\n\t<b> login </b>  form. </p>",
		"<paragraph>", `"Found in"`, `" "`, `"login"[b]`, `" "[b]`, `"form."`, "</>")

	tests := []struct {
		src  string
		want string
	}{
		{"<p>a \t\n b</p>", "a b|"},
		{"<p>   lead and trail   </p>", "lead and trail|"},
		{"<p>a </p><p> b</p>", "a|b|"},
		{"<p>a<b> </b>b</p>", "a b|"},
		{"<p>a <i> </i> <u> b</u></p>", "a b|"},
		{"<p>x  \u00a0 y</p>", "x \u00a0 y|"},
		{"<p>one <br>   two</p>", "one/two|"},
		{"<p>  </p>", "|"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, visibleText(t, tt.src), tt.src)
	}
}

func TestImplicitParagraph(t *testing.T) {
	assertEvents(t, "Found in <b>login</b> form.",
		"<paragraph>", `"Found in"`, `" "`, `"login"[b]`, `" form."`, "</>")
	assertEvents(t, "\n  <p>a</p>\n  ", "<paragraph>", `"a"`, "</>")
}

func TestEmptyParagraphKept(t *testing.T) {
	assertEvents(t, "<p></p><p>x</p>", "<paragraph>", "</>", "<paragraph>", `"x"`, "</>")
}

func TestHeadingsQuotesAndAlignment(t *testing.T) {
	assertEvents(t, `<h2>Title</h2><blockquote><p>q</p>loose</blockquote><p style="text-align: center">c</p>`,
		"<heading2>", `"Title"`, "</>",
		"<quote>", `"q"`, "</>",
		"<quote>", `"loose"`, "</>",
		"<paragraph@center>", `"c"`, "</>")
}

func TestStyleScoping(t *testing.T) {
	assertEvents(t, "<p><b>bold <i>both</i></b> plain <code>x</code><sub>2</sub><sup>3</sup><del>no</del><mark>hi</mark></p>",
		"<paragraph>", `"bold"[b]`, `" "[b]`, `"both"[b,i]`, `" plain"`, `" "`, `"x"[code]`, `"2"[sub]`, `"3"[sup]`, `"no"[s]`, `"hi"[mark]`, "</>")
}

func TestSpanStyles(t *testing.T) {
	assertEvents(t, `<p><span class="bold underline" style="color: #ff0000; font-size: 16px; font-family: 'Courier New', monospace; background-color: rgb(255, 255, 0)">x</span></p>`,
		"<paragraph>", `"x"[b,u,mark,font=Courier New,size=12,color=FF0000,bg=FFFF00]`, "</>")
}

func TestLinks(t *testing.T) {
	assertEvents(t, `<p>go <a href="https://example.com">here <b>now</b></a></p>`,
		"<paragraph>", `"go"`, `" "`, `"here"[link=https://example.com]`, `" "[link=https://example.com]`, `"now"[b,link=https://example.com]`, "</>")
}

func TestLists(t *testing.T) {
	assertEvents(t, "<ul>\n<li>one</li>\n<li>two<ol><li>nested</li></ol></li>\n</ul><p>after</p>",
		"LIST",
		"<list-item0>", `"one"`, "</>",
		"<list-item0>", `"two"`, "</>",
		"<list-item1#>", `"nested"`, "</>",
		"/LIST",
		"<paragraph>", `"after"`, "</>")

	assertEvents(t, "<ol><li><p>a</p><p>b</p></li></ol>",
		"LIST", "<list-item0#>", `"a"`, "BR", `"b"`, "</>", "/LIST")
}

func TestStrayListItem(t *testing.T) {
	assertEvents(t, "<li>alone</li>", "LIST", "<list-item0>", `"alone"`, "</>", "/LIST")
}

func TestPreformatted(t *testing.T) {
	assertEvents(t, "<pre>line  1\n  indented\n</pre>",
		"<pre>", `"line  1"`, "BR", `"  indented"`, "BR", "</>")
}

func TestMarkers(t *testing.T) {
	assertEvents(t, `<p>See <span data-gw-ref="fig1"></span> below</p>`,
		"<paragraph>", `"See"`, `" "`, "REF:fig1", `" below"`, "</>")
	assertEvents(t, `<p><span data-gw-caption="login"></span> Login page</p>`,
		"<paragraph>", "CAP:login/figure", `" Login page"`, "</>")
	assertEvents(t, `<p><span data-gw-caption="t1" data-gw-caption-kind="table"></span>Hosts</p>`,
		"<paragraph>", "CAP:t1/table", `"Hosts"`, "</>")
	assertEvents(t, `<p>Text<span class="footnote"> see   RFC </span></p>`,
		"<paragraph>", `"Text"`, "FN:see RFC", "</>")
	assertEvents(t, "<p>a</p>"+templating.PageBreakMarker+"<p>b</p>",
		"<paragraph>", `"a"`, "</>", "<paragraph>", "PAGE", "</>", "<paragraph>", `"b"`, "</>")
}

func TestEvidenceSplitsParagraph(t *testing.T) {
	assertEvents(t, `<p>Before<span data-gw-evidence="Shot"></span>after</p>`,
		"<paragraph>", `"Before"`, "</>", "EV:Shot", "<paragraph>", `"after"`, "</>")
	assertEvents(t, `<p><span data-gw-evidence="Shot"></span></p>`, "EV:Shot")
}

func TestUnknownEvidence(t *testing.T) {
	err := Convert(templating.EvidenceMarker("Nope"), &recorder{}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, reporterr.ErrUnknownEvidence))
}

func TestUnknownTagsSkipped(t *testing.T) {
	assertEvents(t, `<p>a<img src="x.png">b</p><div>gone</div><p>c</p>`,
		"<paragraph>", `"a"`, `"b"`, "</>", "<paragraph>", `"c"`, "</>")
}

func TestTableMerges(t *testing.T) {
	src := `<table><tr><th rowspan="2">A</th><td colspan="2">B</td></tr><tr><td>C</td><td>D</td></tr></table>`
	assertEvents(t, src,
		"TABLE 2x3",
		"CELL 0,0h", "<paragraph>", `"A"`, "</>", "/CELL", "MERGE 0,0-1,0",
		"CELL 0,1", "<paragraph>", `"B"`, "</>", "/CELL", "MERGE 0,1-0,2",
		"CELL 1,1", "<paragraph>", `"C"`, "</>", "/CELL",
		"CELL 1,2", "<paragraph>", `"D"`, "</>", "/CELL",
		"/TABLE")
}

func TestTableGridSize(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		rows, cols int
		merges     int
	}{
		{"plain", `<table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>`, 2, 2, 0},
		{"ragged", `<table><tr><td>a</td></tr><tr><td>b</td><td>c</td><td>d</td></tr></table>`, 2, 3, 0},
		{"rowspan past last row", `<table><tr><td rowspan="3">a</td><td>b</td></tr></table>`, 3, 2, 1},
		{"bad spans default to one", `<table><tr><td colspan="x" rowspan="0">a</td></tr></table>`, 1, 1, 0},
		{"thead and tbody", `<table><thead><tr><th colspan="2">h</th></tr></thead><tbody><tr><td>a</td><td>b</td></tr></tbody></table>`, 2, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := convert(t, tt.src)
			require.NotEmpty(t, events)
			assert.Equal(t, fmt.Sprintf("TABLE %dx%d", tt.rows, tt.cols), events[0])
			merges := 0
			for _, e := range events {
				if strings.HasPrefix(e, "MERGE") {
					merges++
				}
			}
			assert.Equal(t, tt.merges, merges)
		})
	}
}

func TestTableCellOutsideGridDropped(t *testing.T) {
	src := `<table><tr><td rowspan="2">a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>`
	events := convert(t, src)
	assert.Contains(t, events, `"c"`)
	assert.NotContains(t, events, `"d"`)
}

func TestTableNoDoubleMerge(t *testing.T) {
	// the second row's colspan runs into the cell the first row's rowspan holds
	src := `<table><tr><td>a</td><td rowspan="2">b</td></tr><tr><td colspan="2">c</td></tr></table>`
	events := convert(t, src)
	assert.Contains(t, events, "MERGE 0,1-1,1")
	assert.NotContains(t, events, "MERGE 1,0-1,1")
}

func TestListInsideTableCell(t *testing.T) {
	assertEvents(t, `<ul><li>x<table><tr><td><ul><li>in</li></ul></td></tr></table></li></ul>`,
		"LIST", "<list-item0>", `"x"`, "</>",
		"TABLE 1x1", "CELL 0,0", "LIST", "<list-item0>", `"in"`, "</>", "/LIST", "/CELL", "/TABLE",
		"/LIST")
}

