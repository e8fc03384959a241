package common

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// defaultSafetySettings matches what the Gemini CLI sends when a request
// carries no safety configuration of its own.
const defaultSafetySettings = `[` +
	`{"category":"HARM_CATEGORY_HARASSMENT","threshold":"OFF"},` +
	`{"category":"HARM_CATEGORY_HATE_SPEECH","threshold":"OFF"},` +
	`{"category":"HARM_CATEGORY_SEXUALLY_EXPLICIT","threshold":"OFF"},` +
	`{"category":"HARM_CATEGORY_DANGEROUS_CONTENT","threshold":"OFF"},` +
	`{"category":"HARM_CATEGORY_CIVIC_INTEGRITY","threshold":"BLOCK_NONE"}` +
	`]`

// AttachDefaultSafetySettings writes the default safety settings at path
// unless the request already carries its own.
func AttachDefaultSafetySettings(rawJSON []byte, path string) []byte {
	if gjson.GetBytes(rawJSON, path).Exists() {
		return rawJSON
	}
	out, err := sjson.SetRawBytes(rawJSON, path, []byte(defaultSafetySettings))
	if err != nil {
		return rawJSON
	}
	return out
}
