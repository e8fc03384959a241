package executor

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"

	"github.com/router-for-me/AntiHubAPI/internal/auth"
	"github.com/router-for-me/AntiHubAPI/internal/util"
)

const (
	// sseScanBuffer caps a single SSE line. Oversized lines fail the scan
	// instead of silently truncating a JSON payload.
	sseScanBuffer = 1024 * 1024

	ssePrefixData = "data:"
	sseDone       = "[DONE]"
)

var (
	httpClientOnce sync.Once
	httpClient     *http.Client
)

// upstreamHTTPClient returns the shared client for provider calls. Response
// decompression is manual (decodeResponseBody) so Content-Encoding stays
// visible, and the transport negotiates h2 where the upstream offers it.
// No client timeout: streams run as long as the request context allows.
func upstreamHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  true,
		}
		if err := http2.ConfigureTransport(transport); err != nil {
			log.Warnf("executor: http2 transport configure failed, staying on h1: %v", err)
		}
		httpClient = &http.Client{Transport: transport}
	})
	return httpClient
}

// decodeResponseBody wraps body according to Content-Encoding. Identity,
// empty and unknown encodings pass through untouched.
func decodeResponseBody(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	if body == nil {
		return nil, fmt.Errorf("decode response body: nil body")
	}
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("decode response body: gzip: %w", err)
		}
		return &compositeReadCloser{Reader: reader, closers: []io.Closer{reader, body}}, nil
	case "br":
		return &compositeReadCloser{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	case "zstd":
		reader, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("decode response body: zstd: %w", err)
		}
		rc := reader.IOReadCloser()
		return &compositeReadCloser{Reader: rc, closers: []io.Closer{rc, body}}, nil
	default:
		return body, nil
	}
}

// compositeReadCloser reads from the decompressor and closes it together
// with the underlying body.
type compositeReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *compositeReadCloser) Close() error {
	var first error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newSSEScanner returns a line scanner sized for SSE payloads.
func newSSEScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), sseScanBuffer)
	return scanner
}

// summarizeErrorBody renders an upstream error body for logs and error
// messages. HTML bodies collapse to a marker and long bodies truncate.
func summarizeErrorBody(contentType string, body []byte) string {
	const limit = 512
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "(empty body)"
	}
	lowerType := strings.ToLower(contentType)
	if strings.Contains(lowerType, "text/html") || strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html") {
		return fmt.Sprintf("(html body, %d bytes)", len(body))
	}
	// Upstream error payloads can echo the credential that failed.
	trimmed = strings.TrimSpace(string(util.RedactSensitiveJSON([]byte(trimmed))))
	if len(trimmed) > limit {
		return trimmed[:limit] + "..."
	}
	return trimmed
}

// applyCredentialHeaders sets the bearer token and the account's extra
// headers on an upstream request.
func applyCredentialHeaders(r *http.Request, creds *auth.Credentials, token string) {
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if creds == nil {
		return
	}
	for k, v := range creds.Headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		r.Header.Set(k, v)
	}
}

// closeBody closes an upstream response body, logging the rare failure.
func closeBody(body io.Closer, provider string) {
	if body == nil {
		return
	}
	if err := body.Close(); err != nil {
		log.Errorf("%s executor: close response body: %v", provider, err)
	}
}
