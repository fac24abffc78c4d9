package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

// lookup resolves a dotted path such as "seller_info.shop_id" inside a raw item
func lookup(raw map[string]any, path string) (any, bool) {
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// firstString returns the first non-empty string found under the given keys
func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := lookup(raw, key)
		if !ok {
			continue
		}
		if s, ok := asString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstValue returns the first present value under the given keys
func firstValue(raw map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := lookup(raw, key); ok {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

// asString renders scalars as strings; ids often arrive as JSON numbers
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case marketplace.RawItem:
		return map[string]any(t), true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// has reports whether any of the keys is present at the top level
func has(raw map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	return false
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// imageList collects image URLs from a list of strings or objects with a url field
func imageList(v any, urlKeys ...string) []string {
	items, ok := asSlice(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var u string
		if s, ok := item.(string); ok {
			u = s
		} else if m, ok := asMap(item); ok {
			u = firstString(m, urlKeys...)
		}
		if u = FixImageURL(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// specList collects name/value pairs from a list of objects
func specList(v any, nameKeys, valueKeys []string) []marketplace.Specification {
	items, ok := asSlice(v)
	if !ok {
		return nil
	}
	out := make([]marketplace.Specification, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		name := firstString(m, nameKeys...)
		value := firstString(m, valueKeys...)
		if name == "" && value == "" {
			continue
		}
		out = append(out, marketplace.Specification{Name: name, Value: value})
	}
	return out
}

func describe(v any) string {
	return fmt.Sprintf("%T", v)
}
