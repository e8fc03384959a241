package translator

import "context"

// RequestTransform converts a request payload from one schema to another.
// The model argument carries the already-normalized model id; rawJSON is the
// inbound request body; stream indicates whether the client asked for SSE.
type RequestTransform = func(model string, rawJSON []byte, stream bool) []byte

// ResponseStreamTransform converts one upstream stream chunk into zero or more
// front-format SSE blocks. originalRequestRawJSON is the body the client sent,
// requestRawJSON is the translated upstream body, rawJSON is the current
// upstream chunk. param points to translator-private state that lives for the
// duration of one stream; the first call receives *param == nil and is
// expected to initialize it.
type ResponseStreamTransform = func(ctx context.Context, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string

// ResponseNonStreamTransform converts a complete upstream response body into a
// front-format response body.
type ResponseNonStreamTransform = func(ctx context.Context, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string

// TokenCountTransform renders a token count in the front schema's
// count-tokens response shape.
type TokenCountTransform = func(ctx context.Context, count int64) string

// ResponseTransform bundles the response-side translators for one
// upstream->front direction.
type ResponseTransform struct {
	Stream     ResponseStreamTransform
	NonStream  ResponseNonStreamTransform
	TokenCount TokenCountTransform
}
