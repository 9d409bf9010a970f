package provider

import "strings"

// getPath walks a dotted path (e.g. "delta.content") through nested
// map[string]any/[]any values, used by the custom-HTTP provider's
// response.*Field/response.*Path config options (§4.3).
func getPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func getString(v any, path string) (string, bool) {
	val, ok := getPath(v, path)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}
