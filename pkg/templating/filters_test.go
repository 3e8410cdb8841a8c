package templating

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/reportforge/pkg/reporterr"
)

func sampleFindings() []any {
	return []any{
		map[string]any{"title": "SQLi", "severity": map[string]any{"label": "Critical"}, "finding_type": "Web", "tags": []any{"owasp"}},
		map[string]any{"title": "Banner", "severity": "Low", "finding_type": "Network", "tags": []any{"info"}},
		map[string]any{"title": "XSS", "severity_label": "High", "finding_type": "web"},
	}
}

func titles(t *testing.T, v []any) []string {
	t.Helper()
	var out []string
	for _, item := range v {
		out = append(out, item.(map[string]any)["title"].(string))
	}
	return out
}

func TestFilterSeverity(t *testing.T) {
	got, err := filterSeverity([]any{"critical", "High"}, sampleFindings())
	require.NoError(t, err)
	assert.Equal(t, []string{"SQLi", "XSS"}, titles(t, got))

	_, err = filterSeverity("Critical", sampleFindings())
	var fv *reporterr.InvalidFilterValueError
	require.True(t, errors.As(err, &fv))
	assert.Equal(t, "filter_severity", fv.Filter)

	_, err = filterSeverity([]any{1}, sampleFindings())
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))

	_, err = filterSeverity([]any{"Low"}, "not a list")
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))
}

func TestFilterTypeAndTags(t *testing.T) {
	got, err := filterType([]string{"web"}, sampleFindings())
	require.NoError(t, err)
	assert.Equal(t, []string{"SQLi", "XSS"}, titles(t, got))

	got, err = filterTags([]any{"OWASP"}, sampleFindings())
	require.NoError(t, err)
	assert.Equal(t, []string{"SQLi"}, titles(t, got))
}

func TestFilterCompromised(t *testing.T) {
	targets := []any{
		map[string]any{"hostname": "a", "compromised": true},
		map[string]any{"hostname": "b", "compromised": false},
		map[string]any{"hostname": "c"},
	}
	got, err := filterCompromised(targets)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].(map[string]any)["hostname"])
}

func TestStripHTML(t *testing.T) {
	got, err := stripHTML("<p>a &amp; <b>b</b></p>")
	require.NoError(t, err)
	assert.Equal(t, "a & b", got)

	got, err = stripHTML(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = stripHTML(42)
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		days any
		date any
		want string
	}{
		{1, "2024-01-05", "2024-01-08"},   // Friday to Monday
		{5, "2024-01-01", "2024-01-08"},   // a working week
		{-1, "2024-01-08", "2024-01-05"},  // Monday back to Friday
		{0, "2024-01-06", "2024-01-06"},   // no shift on a weekend
		{"2", "01/04/2024", "01/08/2024"}, // layout preserved
		{float64(1), "2024-01-01", "2024-01-02"},
		{1, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "2024-01-08"},
	}
	for _, tt := range tests {
		got, err := addDays(tt.days, tt.date)
		require.NoError(t, err, "%v %v", tt.days, tt.date)
		assert.Equal(t, tt.want, got, "%v %v", tt.days, tt.date)
	}

	for _, bad := range []struct{ days, date any }{
		{"soon", "2024-01-01"},
		{1.5, "2024-01-01"},
		{1, "yesterday"},
		{1, 20240101},
	} {
		_, err := addDays(bad.days, bad.date)
		assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue), "%v %v", bad.days, bad.date)
	}
}

func TestFormatDatetime(t *testing.T) {
	got, err := formatDatetime("January 2, 2006", "2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, "March 9, 2024", got)

	_, err = formatDatetime(7, "2024-03-09")
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))
}

func TestRegexSearch(t *testing.T) {
	got, err := regexSearch(`CVE-(\d+-\d+)`, "see CVE-2021-44228 for details")
	require.NoError(t, err)
	assert.Equal(t, "2021-44228", got)

	got, err = regexSearch(`\d+`, "port 443")
	require.NoError(t, err)
	assert.Equal(t, "443", got)

	got, err = regexSearch(`\d+`, "none")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = regexSearch(`(`, "x")
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))
}

func TestGetItem(t *testing.T) {
	list := []any{"a", "b", "c"}
	got, err := getItem(0, list)
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = getItem(-1, list)
	require.NoError(t, err)
	assert.Equal(t, "c", got)

	_, err = getItem(3, list)
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))
	_, err = getItem(0, "abc")
	assert.True(t, errors.Is(err, reporterr.ErrInvalidFilterValue))
}

func TestReplaceBlanks(t *testing.T) {
	got, err := replaceBlanks("N/A", []any{"x", " ", nil, map[string]any{"a": "", "b": "y"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "N/A", "N/A", map[string]any{"a": "N/A", "b": "y"}}, got)
}

func TestFiltersInPipelines(t *testing.T) {
	env := New(Options{})
	vars := map[string]any{"findings": sampleFindings(), "start": "2024-01-05"}

	out, err := env.Render("p", `{{ range .findings | filter_severity (list "Low") }}{{ .title }}{{ end }}`, vars)
	require.NoError(t, err)
	assert.Equal(t, "Banner", out)

	out, err = env.Render("p", `{{ .start | add_days 1 }}`, vars)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", out)
}
