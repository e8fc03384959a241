package util

import (
	"encoding/json"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveKeyMarkers are matched as substrings of lowercased field names.
// Any field whose name contains one of them has its value replaced before
// the payload reaches a log line.
var sensitiveKeyMarkers = []string{
	"authorization",
	"cookie",
	"api_key",
	"apikey",
	"secret",
	"token",
	"password",
}

// RedactSensitiveJSON replaces credential-bearing values in a JSON payload so
// the result is safe to log. Payloads that are not JSON objects or arrays,
// including invalid JSON, come back untouched.
func RedactSensitiveJSON(body []byte) []byte {
	switch firstNonSpace(body) {
	case '{', '[':
	default:
		return body
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}
	scrubbed, err := json.Marshal(scrub(doc))
	if err != nil {
		return body
	}
	return scrubbed
}

func scrub(node any) any {
	switch val := node.(type) {
	case map[string]any:
		for key, child := range val {
			if isSensitiveKey(key) {
				val[key] = redactedValue
			} else {
				val[key] = scrub(child)
			}
		}
	case []any:
		for i, child := range val {
			val[i] = scrub(child)
		}
	}
	return node
}

func firstNonSpace(body []byte) byte {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}

// MaskSensitiveQuery masks credential values in a raw query string before it
// is logged. Parameter order and escaping are preserved; only the values of
// sensitive parameters are replaced. The bare "key" parameter is masked too
// because the Gemini front carries its API key there.
func MaskSensitiveQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	segments := strings.Split(rawQuery, "&")
	for i, segment := range segments {
		name, _, found := strings.Cut(segment, "=")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "key") || isSensitiveKey(name) {
			segments[i] = name + "=" + redactedValue
		}
	}
	return strings.Join(segments, "&")
}
