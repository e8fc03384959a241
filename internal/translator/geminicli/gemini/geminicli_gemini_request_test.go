package gemini

import (
	"fmt"
	"testing"

	"github.com/tidwall/gjson"
)

func TestConvertGeminiRequestToGeminiCLI_Envelope(t *testing.T) {
	in := []byte(`{"model":"ignored","contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)

	out := ConvertGeminiRequestToGeminiCLI("gemini-2.5-pro", in, false)
	root := gjson.ParseBytes(out)

	if got := root.Get("model").String(); got != "gemini-2.5-pro" {
		t.Fatalf("model = %q", got)
	}
	if !root.Get("project").Exists() || root.Get("project").String() != "" {
		t.Fatalf("project should be present and empty: %s", out)
	}
	if root.Get("request.model").Exists() {
		t.Fatalf("request.model should be removed: %s", out)
	}
	if got := root.Get("request.contents.0.parts.0.text").String(); got != "hi" {
		t.Fatalf("content text = %q", got)
	}

	safety := root.Get("request.safetySettings")
	if n := safety.Get("#").Int(); n != 5 {
		t.Fatalf("safetySettings = %d entries, want 5: %s", n, out)
	}
	if got := safety.Get("0.threshold").String(); got != "OFF" {
		t.Fatalf("safetySettings.0.threshold = %q", got)
	}
	if got := safety.Get("4.category").String(); got != "HARM_CATEGORY_CIVIC_INTEGRITY" {
		t.Fatalf("safetySettings.4.category = %q", got)
	}
	if got := safety.Get("4.threshold").String(); got != "BLOCK_NONE" {
		t.Fatalf("safetySettings.4.threshold = %q", got)
	}
}

func TestConvertGeminiRequestToGeminiCLI_CustomSafetySettingsKept(t *testing.T) {
	in := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}],
  "safetySettings":[{"category":"HARM_CATEGORY_HARASSMENT","threshold":"BLOCK_LOW_AND_ABOVE"}]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	safety := gjson.GetBytes(out, "request.safetySettings")
	if n := safety.Get("#").Int(); n != 1 {
		t.Fatalf("safetySettings = %d entries, want the caller's 1: %s", n, out)
	}
	if got := safety.Get("0.threshold").String(); got != "BLOCK_LOW_AND_ABOVE" {
		t.Fatalf("threshold = %q", got)
	}
}

func TestConvertGeminiRequestToGeminiCLI_InlineDataNormalized(t *testing.T) {
	in := []byte(`{"contents":[{"role":"user","parts":[
  {"text":"what is in the image?"},
  {"inlineData":{"mimeType":"image/png","data":"AAA"}}
]}]}`)

	out := ConvertGeminiRequestToGeminiCLI("gemini-2.5-pro", in, true)

	if gjson.GetBytes(out, "request.contents.0.parts.0.thoughtSignature").Exists() {
		t.Fatalf("text part should not get a signature: %s", out)
	}
	part := gjson.GetBytes(out, "request.contents.0.parts.1")
	if got := part.Get("thoughtSignature").String(); got != "skip_thought_signature_validator" {
		t.Fatalf("thoughtSignature = %q", got)
	}
	if part.Get("inlineData.mimeType").Exists() {
		t.Fatalf("mimeType should be renamed: %s", part.Raw)
	}
	if got := part.Get("inlineData.mime_type").String(); got != "image/png" {
		t.Fatalf("mime_type = %q", got)
	}
	if got := part.Get("inlineData.data").String(); got != "AAA" {
		t.Fatalf("data = %q", got)
	}
}

func TestConvertGeminiRequestToGeminiCLI_FileDataNormalized(t *testing.T) {
	in := []byte(`{"contents":[{"role":"user","parts":[
  {"fileData":{"mimeType":"video/mp4","fileUri":"gs://bucket/video.mp4"}}
]}]}`)

	out := ConvertGeminiRequestToGeminiCLI("gemini-2.5-pro", in, false)
	part := gjson.GetBytes(out, "request.contents.0.parts.0")

	if got := part.Get("thoughtSignature").String(); got != "skip_thought_signature_validator" {
		t.Fatalf("thoughtSignature = %q", got)
	}
	if part.Get("fileData.mimeType").Exists() || part.Get("fileData.fileUri").Exists() {
		t.Fatalf("camelCase fields should be renamed: %s", part.Raw)
	}
	if got := part.Get("fileData.mime_type").String(); got != "video/mp4" {
		t.Fatalf("mime_type = %q", got)
	}
	if got := part.Get("fileData.file_uri").String(); got != "gs://bucket/video.mp4" {
		t.Fatalf("file_uri = %q", got)
	}
}

func TestConvertGeminiRequestToGeminiCLI_ExistingSignaturePreserved(t *testing.T) {
	in := []byte(`{"contents":[{"role":"user","parts":[
  {"inlineData":{"mimeType":"image/png","data":"AAA"},"thoughtSignature":"keep"}
]}]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	if got := gjson.GetBytes(out, "request.contents.0.parts.0.thoughtSignature").String(); got != "keep" {
		t.Fatalf("thoughtSignature = %q, want preserved", got)
	}
}

func TestConvertGeminiRequestToGeminiCLI_SnakeSignaturePromoted(t *testing.T) {
	in := []byte(`{"contents":[{"role":"user","parts":[
  {"inlineData":{"mimeType":"image/png","data":"AAA"},"thought_signature":"sig"}
]}]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	part := gjson.GetBytes(out, "request.contents.0.parts.0")
	if got := part.Get("thoughtSignature").String(); got != "sig" {
		t.Fatalf("thoughtSignature = %q", got)
	}
	if part.Get("thought_signature").Exists() {
		t.Fatalf("snake_case key should be removed: %s", part.Raw)
	}
}

func TestConvertGeminiRequestToGeminiCLI_FunctionCallSignature(t *testing.T) {
	in := []byte(`{"contents":[
  {"role":"user","parts":[{"text":"weather?"}]},
  {"role":"model","parts":[{"functionCall":{"name":"get_weather","args":{"city":"SF"}}}]}
]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	part := gjson.GetBytes(out, "request.contents.1.parts.0")
	if got := part.Get("thoughtSignature").String(); got != "skip_thought_signature_validator" {
		t.Fatalf("thoughtSignature = %q", got)
	}
	if got := part.Get("functionCall.args.city").String(); got != "SF" {
		t.Fatalf("functionCall = %s", part.Raw)
	}
}

func TestConvertGeminiRequestToGeminiCLI_SystemInstructionSnakeCase(t *testing.T) {
	in := []byte(`{"system_instruction":{"parts":[{"text":"be brief"}]},
  "contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	if gjson.GetBytes(out, "request.system_instruction").Exists() {
		t.Fatalf("system_instruction should be renamed: %s", out)
	}
	if got := gjson.GetBytes(out, "request.systemInstruction.parts.0.text").String(); got != "be brief" {
		t.Fatalf("systemInstruction = %q", got)
	}
}

func TestConvertGeminiRequestToGeminiCLI_ToolSchemas(t *testing.T) {
	in := []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}],"tools":[
  {"function_declarations":[
    {"name":"a","parameters":{"type":"object","properties":{"q":{"type":"string"}}},"strict":true},
    {"name":"b"}
  ]},
  {"google_search":{}},
  {"urlContext":{}}
]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	tools := gjson.GetBytes(out, "request.tools")

	first := tools.Get("0.functionDeclarations.0")
	if got := first.Get("parametersJsonSchema.properties.q.type").String(); got != "string" {
		t.Fatalf("schema should move to parametersJsonSchema: %s", first.Raw)
	}
	if first.Get("parameters").Exists() {
		t.Fatalf("parameters should be removed: %s", first.Raw)
	}
	if first.Get("strict").Exists() {
		t.Fatalf("strict should be removed: %s", first.Raw)
	}
	if got := tools.Get("0.functionDeclarations.1.parametersJsonSchema.type").String(); got != "object" {
		t.Fatalf("bare declaration should get the default schema: %s", tools.Get("0").Raw)
	}
	if !tools.Get("1.googleSearch").Exists() {
		t.Fatalf("google_search should become googleSearch: %s", tools.Get("1").Raw)
	}
	if !tools.Get("2.urlContext").Exists() {
		t.Fatalf("unknown tool nodes should pass through: %s", tools.Get("2").Raw)
	}
}

func TestConvertGeminiRequestToGeminiCLI_RoleNormalization(t *testing.T) {
	in := []byte(`{"contents":[
  {"parts":[{"text":"a"}]},
  {"role":"bogus","parts":[{"text":"b"}]},
  {"role":"model","parts":[{"text":"c"}]}
]}`)

	out := ConvertGeminiRequestToGeminiCLI("m", in, false)
	contents := gjson.GetBytes(out, "request.contents")
	want := []string{"user", "model", "model"}
	for i, role := range want {
		if got := contents.Get(fmt.Sprintf("%d.role", i)).String(); got != role {
			t.Fatalf("contents.%d.role = %q, want %q: %s", i, got, role, out)
		}
	}
}

func TestRegroupFunctionResponses_DoesNotDropEarlyResponses(t *testing.T) {
	in := `{
  "request": {
    "contents": [
      {"role":"model","parts":[{"functionCall":{"id":"a","name":"A","args":{}}}]},
      {"role":"function","parts":[{"functionResponse":{"id":"a","name":"A","response":{"result":"outA"}}}]},
      {"role":"function","parts":[{"functionResponse":{"id":"b","name":"B","response":{"result":"outB"}}}]},
      {"role":"model","parts":[{"functionCall":{"id":"b","name":"B","args":{}}}]}
    ]
  }
}`

	out, err := regroupFunctionResponses(in)
	if err != nil {
		t.Fatalf("regroupFunctionResponses error: %v", err)
	}

	contents := gjson.Get(out, "request.contents")
	if !contents.Exists() || !contents.IsArray() {
		t.Fatalf("expected request.contents array, got body=%s", out)
	}

	var callBIndex int64 = -1
	contents.ForEach(func(k, v gjson.Result) bool {
		if v.Get("role").String() != "model" {
			return true
		}
		v.Get("parts").ForEach(func(_, p gjson.Result) bool {
			if p.Get("functionCall.id").String() == "b" {
				callBIndex = k.Int()
				return false
			}
			return true
		})
		return callBIndex == -1
	})
	if callBIndex < 0 {
		t.Fatalf("expected to find functionCall id=b in output body=%s", out)
	}

	next := gjson.Get(out, fmt.Sprintf("request.contents.%d.parts", callBIndex+1))
	if !next.Exists() || !next.IsArray() {
		t.Fatalf("expected tool response content after call b body=%s", out)
	}

	found := false
	next.ForEach(func(_, p gjson.Result) bool {
		if p.Get("functionResponse.id").String() == "b" {
			found = true
			return false
		}
		return true
	})
	if !found {
		t.Fatalf("expected functionResponse id=b immediately after call b body=%s", out)
	}
}

func TestRegroupFunctionResponses_PullsResponsesBeforeUserText(t *testing.T) {
	in := `{
  "request": {
    "contents": [
      {"role":"model","parts":[{"functionCall":{"id":"a","name":"A","args":{}}}]},
      {"role":"user","parts":[{"text":"(some user text that must not split tool call/result)"}]},
      {"role":"function","parts":[{"functionResponse":{"id":"a","name":"A","response":{"result":"outA"}}}]}
    ]
  }
}`

	out, err := regroupFunctionResponses(in)
	if err != nil {
		t.Fatalf("regroupFunctionResponses error: %v", err)
	}

	contents := gjson.Get(out, "request.contents")
	if !contents.Exists() || !contents.IsArray() {
		t.Fatalf("expected request.contents array, got body=%s", out)
	}

	if contents.Get("0.role").String() != "model" {
		t.Fatalf("expected first role=model, got %s body=%s", contents.Get("0.role").String(), out)
	}
	if contents.Get("1.role").String() != "user" {
		t.Fatalf("expected second role=user, got %s body=%s", contents.Get("1.role").String(), out)
	}
	if contents.Get("1.parts.0.functionResponse.id").String() != "a" {
		t.Fatalf("expected second message to contain functionResponse id=a body=%s", out)
	}
	if contents.Get("2.parts.0.text").String() == "" {
		t.Fatalf("expected user text to follow tool result body=%s", out)
	}
}

func TestRegroupFunctionResponses_SynthesizesMissingResults(t *testing.T) {
	in := `{
  "request": {
    "contents": [
      {"role":"model","parts":[{"functionCall":{"id":"a","name":"A","args":{}}}]}
    ]
  }
}`

	out, err := regroupFunctionResponses(in)
	if err != nil {
		t.Fatalf("regroupFunctionResponses error: %v", err)
	}

	resp := gjson.Get(out, "request.contents.1.parts.0.functionResponse")
	if got := resp.Get("id").String(); got != "a" {
		t.Fatalf("placeholder id = %q body=%s", got, out)
	}
	if got := resp.Get("response.result").String(); got != "tool_result missing for a" {
		t.Fatalf("placeholder result = %q", got)
	}
}
