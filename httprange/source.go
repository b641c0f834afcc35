// Package httprange reads byte ranges of remote files with HTTP range requests.
package httprange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var ErrRangeNotSupported = errors.New("range requests not supported")

// Source reads ranges of a single remote file. The validators (ETag,
// Last-Modified) seen when the source is created are sent with every read, so
// a file replaced on the server fails the reads instead of mixing versions.
type Source struct {
	url          string
	client       *http.Client
	headers      http.Header
	size         uint64
	etag         string
	lastModified string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewSource creates a Source and probes the remote for its size and
// validators with a one-byte range request.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}

	if err := s.probe(ctx); err != nil {
		return nil, fmt.Errorf("probe %v: %w", url, err)
	}
	return s, nil
}

// Size returns the total size of the remote file.
func (s *Source) Size() uint64 {
	return s.size
}

// URL returns the remote file address.
func (s *Source) URL() string {
	return s.url
}

// ReadRange fetches exactly length bytes starting at offset.
func (s *Source) ReadRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if offset+length > s.size {
		return nil, fmt.Errorf("range %d+%d beyond end of file (%d): %w", offset, length, s.size, io.ErrUnexpectedEOF)
	}

	req, err := s.newRequest(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// ok
	case http.StatusOK:
		return nil, ErrRangeNotSupported
	default:
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}

	buffer := make([]byte, length)
	if _, err := io.ReadFull(resp.Body, buffer); err != nil {
		return nil, fmt.Errorf("range %d+%d: %w", offset, length, err)
	}
	return buffer, nil
}

func (s *Source) probe(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// ok
	case http.StatusOK:
		return ErrRangeNotSupported
	default:
		return fmt.Errorf("range probe failed: %s", resp.Status)
	}

	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

func (s *Source) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if s.etag != "" && req.Header.Get("If-Match") == "" {
		req.Header.Set("If-Match", s.etag)
	}
	if s.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
		req.Header.Set("If-Unmodified-Since", s.lastModified)
	}
	return req, nil
}

func parseContentRange(value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
