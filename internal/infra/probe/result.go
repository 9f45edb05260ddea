package probe

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	ErrorKindNone    ErrorKind = ""
	ErrorKindTimeout ErrorKind = "TIMEOUT"
	ErrorKindSSL     ErrorKind = "SSL"
	ErrorKindHTTP    ErrorKind = "HTTP"
	ErrorKindOther   ErrorKind = "OTHER"
	ErrorKindUnknown ErrorKind = "UNKNOWN"
)

// Result is the outcome of the last attempt of a probe.
type Result struct {
	URL        string
	OK         bool
	StatusCode int
	Elapsed    time.Duration
	Body       []byte
	JSON       any // nil when the body is not JSON
	ErrorKind  ErrorKind
	Error      string
	Header     http.Header
	Proto      string
	Attempts   int
}

// HasJSON reports whether the body parsed as JSON.
func (r *Result) HasJSON() bool {
	return r != nil && r.JSON != nil
}

// Lookup walks a dotted path ("a.b.0.c") through the parsed body.
func (r *Result) Lookup(path string) (any, bool) {
	if r == nil || r.JSON == nil {
		return nil, false
	}
	cur := r.JSON
	if path == "" {
		return cur, true
	}
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at path.
func (r *Result) String(path string) (string, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Number returns the number at path. Numeric strings are accepted.
func (r *Result) Number(path string) (float64, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the boolean at path.
func (r *Result) Bool(path string) (bool, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Array returns the array at path.
func (r *Result) Array(path string) ([]any, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}

// HeaderEquals reports whether header name has the given value.
func (r *Result) HeaderEquals(name, value string) bool {
	if r == nil || r.Header == nil {
		return false
	}
	return strings.TrimSpace(r.Header.Get(name)) == value
}
