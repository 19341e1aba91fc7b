// Package testutil provides fixtures shared by pkg/unzip's tests:
// an in-memory ZIP builder and a fake http.RoundTripper for exercising
// RangedHttpReader without a real server.
//
// The transport fake below mirrors the request/response shape of
// docker/model-runner's internal transport test helpers.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// FakeResource represents a byte resource served by FakeTransport.
type FakeResource struct {
	Data          io.ReaderAt
	Length        int64
	SupportsRange bool
	ETag          string
	LastModified  string

	// RejectHead makes the transport answer HEAD requests with 405, as
	// servers that don't implement HEAD do, forcing callers onto the
	// ranged-GET probing path.
	RejectHead bool
}

// FakeTransport is a test http.RoundTripper serving FakeResources by
// URL, including single-range Range/If-Range handling.
type FakeTransport struct {
	mu        sync.Mutex
	resources map[string]*FakeResource
	requests  []http.Request
}

// NewFakeTransport creates an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{resources: make(map[string]*FakeResource)}
}

// Add registers a resource under url.
func (ft *FakeTransport) Add(url string, resource *FakeResource) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.resources[url] = resource
}

// Requests returns a copy of every request observed so far.
func (ft *FakeTransport) Requests() []http.Request {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	reqs := make([]http.Request, len(ft.requests))
	copy(reqs, ft.requests)
	return reqs
}

// RoundTrip implements http.RoundTripper.
func (ft *FakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ft.mu.Lock()
	reqCopy := *req
	if req.Header != nil {
		reqCopy.Header = req.Header.Clone()
	}
	ft.requests = append(ft.requests, reqCopy)
	resource, exists := ft.resources[req.URL.String()]
	ft.mu.Unlock()

	if !exists {
		return emptyResponse(req, http.StatusNotFound), nil
	}

	if req.Method == http.MethodHead {
		if resource.RejectHead {
			return emptyResponse(req, http.StatusMethodNotAllowed), nil
		}
		return ft.baseResponse(req, resource, nil, http.StatusOK), nil
	}

	if rangeHeader := req.Header.Get("Range"); rangeHeader != "" && resource.SupportsRange {
		return ft.handleRange(req, resource, rangeHeader)
	}

	body := io.NopCloser(io.NewSectionReader(resource.Data, 0, resource.Length))
	return ft.baseResponse(req, resource, body, http.StatusOK), nil
}

func (ft *FakeTransport) handleRange(req *http.Request, resource *FakeResource, rangeHeader string) (*http.Response, error) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return emptyResponse(req, http.StatusBadRequest), nil
	}
	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return emptyResponse(req, http.StatusBadRequest), nil
	}

	var start, end int64
	var err error
	if parts[0] != "" {
		if start, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
			return emptyResponse(req, http.StatusBadRequest), nil
		}
	}
	if parts[1] != "" {
		if end, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return emptyResponse(req, http.StatusBadRequest), nil
		}
	} else {
		end = resource.Length - 1
	}

	if start < 0 || end >= resource.Length || start > end {
		resp := emptyResponse(req, http.StatusRequestedRangeNotSatisfiable)
		resp.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", resource.Length))
		return resp, nil
	}

	if ifRange := req.Header.Get("If-Range"); ifRange != "" {
		matches := (resource.ETag != "" && !strings.HasPrefix(resource.ETag, "W/") && ifRange == resource.ETag) ||
			(resource.LastModified != "" && ifRange == resource.LastModified)
		if !matches {
			body := io.NopCloser(io.NewSectionReader(resource.Data, 0, resource.Length))
			return ft.baseResponse(req, resource, body, http.StatusOK), nil
		}
	}

	body := io.NopCloser(io.NewSectionReader(resource.Data, start, end-start+1))
	resp := ft.baseResponse(req, resource, body, http.StatusPartialContent)
	resp.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, resource.Length))
	resp.ContentLength = end - start + 1
	return resp, nil
}

func (ft *FakeTransport) baseResponse(req *http.Request, resource *FakeResource, body io.ReadCloser, status int) *http.Response {
	if body == nil {
		body = io.NopCloser(bytes.NewReader(nil))
	}
	resp := &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       body,
		Request:    req,
	}
	if resource.SupportsRange {
		resp.Header.Set("Accept-Ranges", "bytes")
	}
	if resource.ETag != "" {
		resp.Header.Set("ETag", resource.ETag)
	}
	if resource.LastModified != "" {
		resp.Header.Set("Last-Modified", resource.LastModified)
	}
	if status == http.StatusOK {
		resp.ContentLength = resource.Length
		resp.Header.Set("Content-Length", strconv.FormatInt(resource.Length, 10))
	}
	return resp
}

func emptyResponse(req *http.Request, status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Request:    req,
	}
}
