package handlers

import (
	"bytes"
	"io"
	"sync"
)

var sseBufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var (
	sseDataPrefix  = []byte("data: ")
	sseEventPrefix = []byte("event:")
	sseSuffix      = []byte("\n\n")
	sseDone        = []byte("data: [DONE]\n\n")
	doneSentinel   = []byte("[DONE]")
)

// WriteSSEChunk writes one translated stream chunk as an SSE frame. Chunks
// that already carry an "event:" header (Anthropic and Responses framing)
// are written verbatim; bare JSON payloads get the standard "data:" prefix;
// the [DONE] sentinel is rendered as the terminal data frame.
func WriteSSEChunk(w io.Writer, chunk []byte) {
	if w == nil || len(chunk) == 0 {
		return
	}
	if bytes.Equal(chunk, doneSentinel) {
		_, _ = w.Write(sseDone)
		return
	}
	buf := sseBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	if bytes.HasPrefix(chunk, sseEventPrefix) {
		buf.Grow(len(chunk) + len(sseSuffix))
		_, _ = buf.Write(chunk)
	} else {
		buf.Grow(len(sseDataPrefix) + len(chunk) + len(sseSuffix))
		_, _ = buf.Write(sseDataPrefix)
		_, _ = buf.Write(chunk)
	}
	_, _ = buf.Write(sseSuffix)
	_, _ = w.Write(buf.Bytes())
	buf.Reset()
	sseBufferPool.Put(buf)
}

// WriteSSEDone writes the standard SSE done marker.
func WriteSSEDone(w io.Writer) {
	if w == nil {
		return
	}
	_, _ = w.Write(sseDone)
}
