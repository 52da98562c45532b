package coze

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FieldPath addresses a value inside a decoded JSON document, one key per element.
type FieldPath []string

func ParseFieldPath(dotted string) FieldPath {
	return FieldPath(strings.Split(strings.TrimSpace(dotted), "."))
}

func ParseFieldPaths(dotted []string) []FieldPath {
	paths := make([]FieldPath, 0, len(dotted))
	for _, d := range dotted {
		if strings.TrimSpace(d) == "" {
			continue
		}
		paths = append(paths, ParseFieldPath(d))
	}
	return paths
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Lookup walks doc along path. Only objects are traversed.
func Lookup(doc any, path FieldPath) (any, bool) {
	cur := doc
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// StringAt returns the scalar at path as text. Numbers keep their JSON spelling;
// objects, arrays and missing values yield "".
func StringAt(doc any, path FieldPath) string {
	v, ok := Lookup(doc, path)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Candidate is one probed path and what it held.
type Candidate struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// FirstNonEmpty probes paths in order and returns the first non-empty value, the
// path it came from, and every candidate considered.
func FirstNonEmpty(doc any, paths []FieldPath) (string, FieldPath, []Candidate) {
	candidates := make([]Candidate, 0, len(paths))
	var (
		value string
		from  FieldPath
	)
	for _, p := range paths {
		v := strings.TrimSpace(StringAt(doc, p))
		candidates = append(candidates, Candidate{Path: p.String(), Value: v})
		if value == "" && v != "" {
			value, from = v, p
		}
	}
	return value, from, candidates
}

// firstString is FirstNonEmpty without the bookkeeping.
func firstString(doc any, paths ...FieldPath) string {
	for _, p := range paths {
		if v := strings.TrimSpace(StringAt(doc, p)); v != "" {
			return v
		}
	}
	return ""
}

// codeAt reads an integer error code. ok is false when the field is absent.
func codeAt(doc any, path FieldPath) (int64, bool) {
	v, ok := Lookup(doc, path)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
