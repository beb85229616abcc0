package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
var exactTokenPattern = regexp.MustCompile(`^\{\{\s*([^{}]+?)\s*\}\}$`)

// Resolve replaces {{path}} tokens in value using data. A string made of a
// single token resolves to the raw value at that path; tokens embedded in
// other text are stringified. Tokens whose path is missing stay in place.
func Resolve(value any, data map[string]any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, data)
	case map[string]any:
		return ResolveMap(v, data)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, data)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveString(item, data)
		}
		return out
	default:
		return v
	}
}

func ResolveMap(params map[string]any, data map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = Resolve(v, data)
	}
	return out
}

func resolveString(s string, data map[string]any) any {
	if !strings.Contains(s, "{{") {
		return s
	}
	if m := exactTokenPattern.FindStringSubmatch(s); m != nil {
		if v, ok := Lookup(data, m[1]); ok {
			return v
		}
		return s
	}
	return tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		path := tokenPattern.FindStringSubmatch(token)[1]
		v, ok := Lookup(data, path)
		if !ok {
			return token
		}
		return Stringify(v)
	})
}

// Lookup reads a dotted path through nested objects. Array indexes and
// wildcards are not supported: such paths, and any segment that lands on a
// non-object, leave the lookup unresolved.
func Lookup(data map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if len(path) == 0 || strings.ContainsAny(path, "[]*()?@$") {
		return nil, false
	}
	for _, seg := range strings.Split(path, ".") {
		if len(strings.TrimSpace(seg)) == 0 {
			return nil, false
		}
	}
	v, err := jsonpath.JsonPathLookup(data, "$."+path)
	if err != nil {
		return nil, false
	}
	return v, true
}

// HasToken reports whether any {{...}} token is left anywhere in value.
func HasToken(value any) bool {
	switch v := value.(type) {
	case string:
		return tokenPattern.MatchString(v)
	case map[string]any:
		for _, item := range v {
			if HasToken(item) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if HasToken(item) {
				return true
			}
		}
	}
	return false
}

// Stringify renders a resolved value for substitution into surrounding text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
