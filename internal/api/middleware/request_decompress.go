package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
)

// Inflated request bodies are capped far above any real CLI payload; hitting
// the cap means a broken or hostile client.
const maxInflatedRequestBytes = 128 << 20 // 128MiB

// RequestDecompressionMiddleware inflates compressed request bodies before
// the handlers parse them. net/http decodes response bodies only; SDK clients
// that compress requests (Factory Droid, the OpenAI SDKs) would otherwise
// feed raw compressed bytes to the JSON layer and fail with confusing 400
// errors.
func RequestDecompressionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		open := decoderForEncoding(c.GetHeader("Content-Encoding"))
		if open == nil {
			c.Next()
			return
		}

		decoder, err := open(c.Request.Body)
		if err != nil {
			abortCompressedBodyError(c, http.StatusBadRequest, "invalid compressed request body")
			return
		}
		defer decoder.Close()

		decoded, err := io.ReadAll(io.LimitReader(decoder, maxInflatedRequestBytes+1))
		if err != nil {
			abortCompressedBodyError(c, http.StatusBadRequest, "failed to decompress request body")
			return
		}
		if int64(len(decoded)) > maxInflatedRequestBytes {
			abortCompressedBodyError(c, http.StatusRequestEntityTooLarge, "decompressed request body too large")
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(decoded))
		c.Request.ContentLength = int64(len(decoded))
		c.Request.Header.Del("Content-Encoding")
		c.Next()
	}
}

// decoderForEncoding returns a constructor wrapping the raw request body in a
// decoder for the given Content-Encoding, or nil when the body can pass
// through untouched. Closing the returned reader releases the decoder only;
// the server still owns the underlying body.
func decoderForEncoding(encoding string) func(io.Reader) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return func(body io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(body)
		}
	case "br":
		return func(body io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(body)), nil
		}
	case "zstd":
		return func(body io.Reader) (io.ReadCloser, error) {
			zr, err := zstd.NewReader(body)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		}
	}
	return nil
}

func abortCompressedBodyError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    "invalid_request_error",
		},
	})
}
