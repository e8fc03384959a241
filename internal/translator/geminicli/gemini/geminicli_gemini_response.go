// Response translation for Gemini CLI to Gemini API compatibility. Gemini CLI
// events arrive as {"response": <GeminiResponse>} envelopes; the translators
// unwrap them so clients see standard generateContent payloads.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// geminiCLIStreamState tracks whether the stream already ended with an error.
type geminiCLIStreamState struct {
	done bool
}

// ConvertGeminiCLIResponseToGemini converts Gemini CLI streaming events to
// Gemini streamGenerateContent payloads. Each event's response envelope is
// unwrapped and passed through; error events end the stream with a Gemini
// error payload. Events without a response object are dropped.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: One Gemini CLI SSE event
//   - param: A pointer to a parameter object for maintaining state between calls
//
// Returns:
//   - []string: Gemini-compatible JSON response payloads
func ConvertGeminiCLIResponseToGemini(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &geminiCLIStreamState{}
	}
	state := (*param).(*geminiCLIStreamState)
	if state.done {
		return []string{}
	}

	payload := bytes.TrimSpace(rawJSON)
	payload = bytes.TrimSpace(bytes.TrimPrefix(payload, []byte("data:")))
	if len(payload) == 0 || string(payload) == "[DONE]" {
		return []string{}
	}

	root := gjson.ParseBytes(payload)
	if errObj := root.Get("error"); errObj.Exists() {
		state.done = true
		return []string{geminiCLIErrorPayload(errObj)}
	}

	response := root.Get("response")
	if !response.IsObject() {
		return []string{}
	}
	return []string{response.Raw}
}

// ConvertGeminiCLIResponseToGeminiNonStream converts a complete Gemini CLI
// response to a Gemini generateContent response by unwrapping the response
// envelope. Bodies without one pass through unchanged.
//
// Parameters:
//   - ctx: The context for the request
//   - modelName: The name of the model being used for the response
//   - originalRequestRawJSON: The original request JSON before any translation
//   - requestRawJSON: The translated request JSON sent to the upstream
//   - rawJSON: The complete Gemini CLI response body
//   - param: A pointer to a parameter object for the conversion
//
// Returns:
//   - string: A Gemini-compatible JSON response
func ConvertGeminiCLIResponseToGeminiNonStream(ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	root := gjson.ParseBytes(rawJSON)
	if response := root.Get("response"); response.IsObject() {
		return response.Raw
	}
	return string(rawJSON)
}

// GeminiTokenCount returns the token count in Gemini countTokens format.
func GeminiTokenCount(ctx context.Context, count int64) string {
	return fmt.Sprintf(`{"totalTokens":%d}`, count)
}

// geminiCLIErrorPayload renders an upstream error object as a Gemini error
// payload, keeping the upstream status code when one is recognizable.
func geminiCLIErrorPayload(errObj gjson.Result) string {
	message := strings.TrimSpace(errObj.Get("message").String())
	if message == "" {
		message = strings.TrimSpace(errObj.Get("detail").String())
	}
	if message == "" {
		message = "upstream_error"
	}
	code := int64(500)
	for _, key := range []string{"code", "status"} {
		if n := errObj.Get(key).Int(); n > 0 {
			code = n
			break
		}
	}
	out, _ := sjson.Set(`{"error":{"message":"","code":500}}`, "error.message", message)
	out, _ = sjson.Set(out, "error.code", code)
	return out
}
