package translator

import (
	"context"
	"sync"
)

// Registry manages translation functions across schemas.
//
// Direction semantics: Register(from, to, ...) stores the request transform
// for from->to and the response transforms for to->from. Callers therefore
// register once per front/upstream pair: the request converter carries the
// client payload toward the upstream, the response converters carry upstream
// output back to the client.
type Registry struct {
	mu        sync.RWMutex
	requests  map[Format]map[Format]RequestTransform
	responses map[Format]map[Format]ResponseTransform
}

// NewRegistry constructs an empty translator registry.
func NewRegistry() *Registry {
	return &Registry{
		requests:  make(map[Format]map[Format]RequestTransform),
		responses: make(map[Format]map[Format]ResponseTransform),
	}
}

// Register stores request/response transforms between two formats.
func (r *Registry) Register(from, to Format, request RequestTransform, response ResponseTransform) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.requests[from]; !ok {
		r.requests[from] = make(map[Format]RequestTransform)
	}
	if request != nil {
		r.requests[from][to] = request
	}

	if _, ok := r.responses[from]; !ok {
		r.responses[from] = make(map[Format]ResponseTransform)
	}
	r.responses[from][to] = response
}

// Unregister removes transforms for the given from->to direction.
func (r *Registry) Unregister(from, to Format) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byTarget, ok := r.requests[from]; ok {
		delete(byTarget, to)
	}
	if byTarget, ok := r.responses[from]; ok {
		delete(byTarget, to)
	}
}

// TranslateRequest converts a payload between schemas, returning the original
// payload unchanged if no translator is registered for the pair.
func (r *Registry) TranslateRequest(from, to Format, model string, rawJSON []byte, stream bool) []byte {
	r.mu.RLock()
	fn := r.requestTransform(from, to)
	r.mu.RUnlock()
	if fn == nil {
		return rawJSON
	}
	return fn(model, rawJSON, stream)
}

func (r *Registry) requestTransform(from, to Format) RequestTransform {
	if byTarget, ok := r.requests[from]; ok {
		return byTarget[to]
	}
	return nil
}

// TranslateStream applies the registered streaming response translator for
// the to->from direction (upstream chunk in, front SSE blocks out). When no
// translator exists the chunk is passed through verbatim.
func (r *Registry) TranslateStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	r.mu.RLock()
	fn := r.responseTransform(to, from)
	r.mu.RUnlock()
	if fn == nil || fn.Stream == nil {
		return []string{string(rawJSON)}
	}
	return fn.Stream(ctx, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// TranslateNonStream applies the registered non-stream response translator
// for the to->from direction.
func (r *Registry) TranslateNonStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	r.mu.RLock()
	fn := r.responseTransform(to, from)
	r.mu.RUnlock()
	if fn == nil || fn.NonStream == nil {
		return string(rawJSON)
	}
	return fn.NonStream(ctx, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// TranslateTokenCount renders a token count in the front schema, falling back
// to rawJSON when the pair has no count translator.
func (r *Registry) TranslateTokenCount(ctx context.Context, from, to Format, count int64, rawJSON []byte) string {
	r.mu.RLock()
	fn := r.responseTransform(to, from)
	r.mu.RUnlock()
	if fn == nil || fn.TokenCount == nil {
		return string(rawJSON)
	}
	return fn.TokenCount(ctx, count)
}

func (r *Registry) responseTransform(from, to Format) *ResponseTransform {
	if byTarget, ok := r.responses[from]; ok {
		if fn, isOk := byTarget[to]; isOk {
			return &fn
		}
	}
	return nil
}

// HasRequestTranslator checks whether a request translator exists.
func (r *Registry) HasRequestTranslator(from, to Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requestTransform(from, to) != nil
}

// HasResponseTransformer indicates whether a response translator exists.
func (r *Registry) HasResponseTransformer(from, to Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if byTarget, ok := r.responses[from]; ok {
		_, isOk := byTarget[to]
		return isOk
	}
	return false
}

var defaultRegistry = NewRegistry()

// Default exposes the package-level registry for shared use.
func Default() *Registry {
	return defaultRegistry
}

// Register attaches transforms to the default registry.
func Register(from, to Format, request RequestTransform, response ResponseTransform) {
	defaultRegistry.Register(from, to, request, response)
}

// Unregister removes transforms for the given from->to direction from the default registry.
func Unregister(from, to Format) {
	defaultRegistry.Unregister(from, to)
}

// TranslateRequest is a helper on the default registry.
func TranslateRequest(from, to Format, model string, rawJSON []byte, stream bool) []byte {
	return defaultRegistry.TranslateRequest(from, to, model, rawJSON, stream)
}

// TranslateStream is a helper on the default registry.
func TranslateStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	return defaultRegistry.TranslateStream(ctx, from, to, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// TranslateNonStream is a helper on the default registry.
func TranslateNonStream(ctx context.Context, from, to Format, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	return defaultRegistry.TranslateNonStream(ctx, from, to, model, originalRequestRawJSON, requestRawJSON, rawJSON, param)
}

// TranslateTokenCount is a helper on the default registry.
func TranslateTokenCount(ctx context.Context, from, to Format, count int64, rawJSON []byte) string {
	return defaultRegistry.TranslateTokenCount(ctx, from, to, count, rawJSON)
}

// HasRequestTranslator is a helper on the default registry.
func HasRequestTranslator(from, to Format) bool {
	return defaultRegistry.HasRequestTranslator(from, to)
}

// HasResponseTransformer inspects the default registry.
func HasResponseTransformer(from, to Format) bool {
	return defaultRegistry.HasResponseTransformer(from, to)
}
