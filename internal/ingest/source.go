package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cantontrack/internal/domain"
)

// maxDocumentBytes caps how much of the upstream body is read.
const maxDocumentBytes = 8 << 20

// Document is a flat stats document: metric key -> JSON scalar.
// Numbers are json.Number so integer counters keep every digit.
type Document map[string]interface{}

// Source produces one stats document per call.
type Source interface {
	Fetch(ctx context.Context) (Document, error)
}

// HTTPSource GETs a JSON document from a fixed URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) URL() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", domain.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %s", domain.ErrFetch, resp.Status)
	}

	return DecodeDocument(io.LimitReader(resp.Body, maxDocumentBytes))
}

// DecodeDocument accepts exactly one JSON object whose values are all scalars.
func DecodeDocument(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %w", domain.ErrFetch, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON document", domain.ErrFetch)
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expecting a JSON object, got %T", domain.ErrFetch, raw)
	}

	for key, value := range obj {
		switch value.(type) {
		case nil, bool, string, json.Number:
		default:
			return nil, fmt.Errorf("%w: value for %q is not a scalar", domain.ErrFetch, key)
		}
	}
	return Document(obj), nil
}
