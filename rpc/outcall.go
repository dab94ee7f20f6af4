package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// OutcallRequest is one outbound HTTP request to a single provider.
type OutcallRequest struct {
	URL              string
	Method           string
	Headers          map[string]string
	Body             []byte
	MaxResponseBytes uint64
}

// OutcallResponse is the raw provider answer. A non-2xx status is returned
// here, not as an error: the dispatcher decides how to classify it.
type OutcallResponse struct {
	StatusCode int
	Body       []byte
}

// Transport is the outbound-call primitive the dispatcher is built on. It is
// injected so the gateway core can be tested against stub providers that
// simulate disagreement, timeouts and transport failures.
type Transport interface {
	Issue(ctx context.Context, req OutcallRequest) (OutcallResponse, error)
}

// initialBufferSize is the starting capacity of pooled response buffers.
const initialBufferSize = 256 * 1024

// maxPooledBufferSize bounds the buffers kept in the pool to avoid memory
// bloat from occasional oversized responses.
const maxPooledBufferSize = 4 * 1024 * 1024

// HTTPTransport issues outcalls over net/http, reading responses through a
// shared buffer pool to reduce GC pressure under fan-out load.
type HTTPTransport struct {
	client *http.Client
	pool   sync.Pool
}

var _ Transport = &HTTPTransport{}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialBufferSize))
			},
		},
	}
}

func (t *HTTPTransport) Issue(ctx context.Context, req OutcallRequest) (OutcallResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return OutcallResponse{}, fmt.Errorf("build request: %w", err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return OutcallResponse{}, err
	}
	defer httpResp.Body.Close()

	body, err := t.readBody(httpResp.Body, req.MaxResponseBytes)
	if err != nil {
		return OutcallResponse{}, fmt.Errorf("read response body: %w", err)
	}

	return OutcallResponse{StatusCode: httpResp.StatusCode, Body: body}, nil
}

// readBody reads up to maxBytes+1 from r through a pooled buffer. Reading
// one byte past the limit distinguishes an oversized response from one that
// is exactly at the limit.
func (t *HTTPTransport) readBody(r io.Reader, maxBytes uint64) ([]byte, error) {
	buf := t.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		if buf.Cap() <= maxPooledBufferSize {
			t.pool.Put(buf)
		}
	}()

	limit := int64(maxBytes)
	if _, err := buf.ReadFrom(io.LimitReader(r, limit+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", maxBytes)
	}

	// Copy out of the pooled buffer before returning it.
	body := make([]byte, buf.Len())
	copy(body, buf.Bytes())
	return body, nil
}
