package templating

import (
	"fmt"
	"html"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/waftester/reportforge/pkg/regexcache"
	"github.com/waftester/reportforge/pkg/reporterr"
)

// Filters take their argument first and the piped value last, so
//
//	{{ .findings | filter_severity (list "Critical" "High") }}
//
// calls filterSeverity(["Critical","High"], findings).

func invalid(filter, format string, args ...any) error {
	return reporterr.NewInvalidFilterValue(filter, format, args...)
}

func describe(v any) string {
	if v == nil {
		return "nothing"
	}
	return fmt.Sprintf("%T %q", v, fmt.Sprint(v))
}

// toList converts any slice or array into []any.
func toList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func toStringSet(filter string, v any) (map[string]bool, error) {
	list, ok := toList(v)
	if !ok {
		return nil, invalid(filter, "the allowlist must be a list of strings, got %s", describe(v))
	}
	set := make(map[string]bool, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, invalid(filter, "the allowlist must only contain strings, found %s", describe(item))
		}
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return set, nil
}

func toObjects(filter string, v any) ([]map[string]any, error) {
	list, ok := toList(v)
	if !ok {
		return nil, invalid(filter, "expected a list of objects, got %s", describe(v))
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalid(filter, "expected a list of objects, found %s", describe(item))
		}
		out = append(out, m)
	}
	return out, nil
}

// severityLabel reads the severity of a finding object, accepting both the
// nested {"label": ...} form and a plain string.
func severityLabel(f map[string]any) string {
	switch s := f["severity"].(type) {
	case string:
		return s
	case map[string]any:
		if l, ok := s["label"].(string); ok {
			return l
		}
	}
	if l, ok := f["severity_label"].(string); ok {
		return l
	}
	return ""
}

func filterSeverity(allow any, findings any) ([]any, error) {
	set, err := toStringSet("filter_severity", allow)
	if err != nil {
		return nil, err
	}
	objs, err := toObjects("filter_severity", findings)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, f := range objs {
		if set[strings.ToLower(severityLabel(f))] {
			out = append(out, f)
		}
	}
	return out, nil
}

func filterType(allow any, findings any) ([]any, error) {
	set, err := toStringSet("filter_type", allow)
	if err != nil {
		return nil, err
	}
	objs, err := toObjects("filter_type", findings)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, f := range objs {
		t, _ := f["finding_type"].(string)
		if set[strings.ToLower(t)] {
			out = append(out, f)
		}
	}
	return out, nil
}

func filterTags(allow any, items any) ([]any, error) {
	set, err := toStringSet("filter_tags", allow)
	if err != nil {
		return nil, err
	}
	objs, err := toObjects("filter_tags", items)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, obj := range objs {
		tags, _ := toList(obj["tags"])
		for _, t := range tags {
			if s, ok := t.(string); ok && set[strings.ToLower(s)] {
				out = append(out, obj)
				break
			}
		}
	}
	return out, nil
}

func filterCompromised(targets any) ([]any, error) {
	objs, err := toObjects("compromised", targets)
	if err != nil {
		return nil, err
	}
	out := []any{}
	for _, t := range objs {
		if c, _ := t["compromised"].(bool); c {
			out = append(out, t)
		}
	}
	return out, nil
}

var stripPolicy = bluemonday.StrictPolicy()

func stripHTML(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		if st, isStringer := v.(fmt.Stringer); isStringer {
			s = st.String()
		} else {
			return "", invalid("strip_html", "expected text, got %s", describe(v))
		}
	}
	return html.UnescapeString(stripPolicy.Sanitize(s)), nil
}

// dateLayouts are tried in order when a filter receives a date string.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

func parseDate(filter string, v any) (time.Time, string, error) {
	switch d := v.(type) {
	case time.Time:
		return d, "2006-01-02", nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, layout, nil
			}
		}
		return time.Time{}, "", invalid(filter, "could not parse %q as a date", d)
	}
	return time.Time{}, "", invalid(filter, "expected a date, got %s", describe(v))
}

func toInt(filter, what string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, invalid(filter, "expected a whole number of %s, got %v", what, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, invalid(filter, "expected a whole number of %s, got %q", what, n)
		}
		return i, nil
	}
	return 0, invalid(filter, "expected a whole number of %s, got %s", what, describe(v))
}

// addBusinessDays moves t by days working days, skipping weekends.
func addBusinessDays(t time.Time, days int) time.Time {
	step := 1
	if days < 0 {
		step = -1
		days = -days
	}
	for days > 0 {
		t = t.AddDate(0, 0, step)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days--
		}
	}
	return t
}

func addDays(days any, date any) (string, error) {
	n, err := toInt("add_days", "days", days)
	if err != nil {
		return "", err
	}
	t, layout, err := parseDate("add_days", date)
	if err != nil {
		return "", err
	}
	return addBusinessDays(t, n).Format(layout), nil
}

func formatDatetime(layout any, date any) (string, error) {
	l, ok := layout.(string)
	if !ok || l == "" {
		return "", invalid("format_datetime", "expected a layout string such as \"January 2, 2006\", got %s", describe(layout))
	}
	t, _, err := parseDate("format_datetime", date)
	if err != nil {
		return "", err
	}
	return t.Format(l), nil
}

func regexSearch(pattern any, text any) (string, error) {
	p, ok := pattern.(string)
	if !ok {
		return "", invalid("regex_search", "expected a pattern string, got %s", describe(pattern))
	}
	s, ok := text.(string)
	if !ok {
		return "", invalid("regex_search", "expected text to search, got %s", describe(text))
	}
	re, err := regexcache.Get(p)
	if err != nil {
		return "", invalid("regex_search", "invalid pattern %q: %v", p, err)
	}
	m := re.FindStringSubmatch(s)
	switch {
	case m == nil:
		return "", nil
	case len(m) > 1:
		return m[1], nil
	default:
		return m[0], nil
	}
}

func getItem(index any, list any) (any, error) {
	items, ok := toList(list)
	if !ok {
		return nil, invalid("get_item", "expected a list, got %s", describe(list))
	}
	i, err := toInt("get_item", "positions", index)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		i += len(items)
	}
	if i < 0 || i >= len(items) {
		return nil, invalid("get_item", "index %v is out of range for a list of %d items", index, len(items))
	}
	return items[i], nil
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

func replaceBlanks(placeholder any, items any) ([]any, error) {
	ph, ok := placeholder.(string)
	if !ok {
		return nil, invalid("replace_blanks", "expected a placeholder string, got %s", describe(placeholder))
	}
	list, ok := toList(items)
	if !ok {
		return nil, invalid("replace_blanks", "expected a list, got %s", describe(items))
	}
	out := make([]any, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case map[string]any:
			m := make(map[string]any, len(v))
			for k, val := range v {
				if isBlank(val) {
					m[k] = ph
				} else {
					m[k] = val
				}
			}
			out[i] = m
		default:
			if isBlank(v) {
				out[i] = ph
			} else {
				out[i] = v
			}
		}
	}
	return out, nil
}
