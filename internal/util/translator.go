package util

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NormalizeNullableTypes collapses JSON Schema nullable-type unions like
// {"type":["STRING","NULL"]} into the bare non-null type. Gemini's function
// declaration validator rejects type arrays, so tool schemas must be rewritten
// before forwarding.
func NormalizeNullableTypes(jsonStr string) string {
	result := jsonStr
	// One replacement per pass; schemas are small so the rescan is cheap.
	for i := 0; i < 256; i++ {
		path, scalar, found := findNullableTypePath(gjson.Parse(result), "")
		if !found {
			break
		}
		updated, err := sjson.Set(result, path, scalar)
		if err != nil {
			return result
		}
		result = updated
	}
	return result
}

func findNullableTypePath(value gjson.Result, prefix string) (string, string, bool) {
	var (
		path   string
		scalar string
		found  bool
	)
	isArray := value.IsArray()
	value.ForEach(func(key, val gjson.Result) bool {
		var childPath string
		if isArray {
			childPath = joinJSONPath(prefix, key.String())
		} else {
			childPath = joinJSONPath(prefix, escapeJSONPathKey(key.String()))
		}
		if !isArray && key.String() == "type" && val.IsArray() {
			if t, ok := collapseNullableType(val); ok {
				path, scalar, found = childPath, t, true
				return false
			}
		}
		if val.IsObject() || val.IsArray() {
			if p, s, ok := findNullableTypePath(val, childPath); ok {
				path, scalar, found = p, s, true
				return false
			}
		}
		return true
	})
	return path, scalar, found
}

// collapseNullableType reports the single non-null member of a type union, if
// the union consists of strings and exactly one of them is not "null".
func collapseNullableType(val gjson.Result) (string, bool) {
	entries := val.Array()
	if len(entries) < 2 {
		return "", false
	}
	nonNull := make([]string, 0, 1)
	for _, entry := range entries {
		if entry.Type != gjson.String {
			return "", false
		}
		if strings.EqualFold(entry.String(), "null") {
			continue
		}
		nonNull = append(nonNull, entry.String())
	}
	if len(nonNull) != 1 || len(nonNull) == len(entries) {
		return "", false
	}
	return nonNull[0], true
}

func joinJSONPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func escapeJSONPathKey(key string) string {
	if !strings.ContainsAny(key, `.*?\|#@`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RepairToolArguments normalizes upstream tool call arguments to a raw JSON
// object. Handles already-parsed objects, JSON strings, double-encoded JSON
// strings, and JSON embedded in surrounding prose. Returns "" when nothing
// object-like can be recovered.
func RepairToolArguments(args gjson.Result) string {
	if args.IsObject() {
		return args.Raw
	}
	if args.Type != gjson.String {
		return ""
	}
	raw := strings.TrimSpace(args.String())
	if raw == "" {
		return ""
	}

	parsed := gjson.Parse(raw)
	for i := 0; i < 2; i++ {
		if parsed.IsObject() && gjson.Valid(parsed.Raw) {
			return parsed.Raw
		}
		if parsed.Type == gjson.String {
			inner := strings.TrimSpace(parsed.String())
			if inner == "" {
				break
			}
			parsed = gjson.Parse(inner)
			continue
		}
		break
	}

	// Arguments wrapped in explanatory text: recover the outermost object.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidate := raw[start : end+1]
		if gjson.Valid(candidate) && gjson.Parse(candidate).IsObject() {
			return candidate
		}
	}
	return ""
}

// RepairToolArgumentsString is RepairToolArguments for arguments held as a
// plain string, such as streaming fragments accumulated across deltas.
func RepairToolArgumentsString(raw string) string {
	return RepairToolArguments(gjson.Result{Type: gjson.String, Str: raw})
}
