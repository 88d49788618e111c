// internal/compiler/binding.go
package compiler

import (
	"strconv"
	"strings"
)

type segment struct {
	name  string
	index int // 1-based, 0 when the segment is not indexed
}

type binding struct {
	key       string
	directive string
	segments  []segment
}

type resolution int

const (
	resolved resolution = iota
	// unbound: a plain key is absent. The layer is decorative.
	unbound
	// missingElement: an indexed segment points past the data. The layer is deleted.
	missingElement
)

// parseBinding splits "day#1.event#2.start_at | h:mm a" into its key segments and directive.
func parseBinding(name string) (binding, bool) {
	parts := strings.SplitN(name, "|", 2)
	b := binding{key: strings.TrimSpace(parts[0])}
	if len(parts) == 2 {
		b.directive = strings.TrimSpace(parts[1])
	}
	if b.key == "" {
		return b, false
	}

	for _, raw := range strings.Split(b.key, ".") {
		raw = strings.TrimSpace(raw)
		seg := segment{name: raw}
		if i := strings.Index(raw, "#"); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(raw[i+1:]))
			if err != nil || n < 1 {
				return b, false
			}
			seg.name = strings.TrimSpace(raw[:i])
			seg.index = n
		}
		if seg.name == "" && seg.index == 0 {
			return b, false
		}
		b.segments = append(b.segments, seg)
	}
	return b, true
}

// field is the last named segment, used to recognise date fields.
func (b binding) field() string {
	for i := len(b.segments) - 1; i >= 0; i-- {
		if b.segments[i].name != "" {
			return b.segments[i].name
		}
	}
	return ""
}

func (b binding) indexed() bool {
	for _, s := range b.segments {
		if s.index > 0 {
			return true
		}
	}
	return false
}

// resolve walks segments from ctx. A segment with an empty name indexes ctx directly.
func resolve(ctx interface{}, segments []segment) (interface{}, resolution) {
	current := ctx
	for _, seg := range segments {
		if seg.name != "" {
			m, ok := asMap(current)
			if !ok {
				return nil, missOrUnbound(seg)
			}
			v, exists := m[seg.name]
			if !exists || v == nil {
				return nil, missOrUnbound(seg)
			}
			current = v
		}
		if seg.index > 0 {
			arr, ok := asSlice(current)
			if !ok || len(arr) < seg.index {
				return nil, missingElement
			}
			current = arr[seg.index-1]
			if current == nil {
				return nil, missingElement
			}
		}
	}
	return current, resolved
}

func missOrUnbound(seg segment) resolution {
	if seg.index > 0 {
		return missingElement
	}
	return unbound
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []map[string]interface{}:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []string:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func isContainer(v interface{}) bool {
	if _, ok := asMap(v); ok {
		return true
	}
	_, ok := asSlice(v)
	return ok
}
