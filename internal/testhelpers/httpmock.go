package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Expectation is one canned reply for a request matching method, host, path,
// the given query values and, optionally, the request body.
type Expectation struct {
	Method string
	URL    *url.URL

	StatusCode int
	RespBody   []byte
	Headers    http.Header

	bodyMatchers []bodyMatcher
	received     *RecordedRequest
}

type bodyMatcher struct {
	desc  string
	match func([]byte) bool
}

// RecordedRequest is what the mock saw for a matched expectation.
type RecordedRequest struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// MockTransport replaces http.DefaultClient's transport. Every request body is
// read to EOF before matching, the way a real connection would consume it.
type MockTransport struct {
	mu           sync.Mutex
	expectations []*Expectation
	unmatched    []string
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

var DefaultTransport = NewMockTransport()

var previousTransport http.RoundTripper = http.DefaultTransport

// New registers an expectation on DefaultTransport for requests to baseURL.
func New(baseURL string) *Expectation {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		panic(fmt.Sprintf("httpmock: base URL %q needs a scheme and host", baseURL))
	}

	exp := &Expectation{URL: u, Headers: make(http.Header)}
	DefaultTransport.add(exp)
	return exp
}

func (e *Expectation) Get(path string) *Expectation { return e.on(http.MethodGet, path) }
func (e *Expectation) Post(path string) *Expectation { return e.on(http.MethodPost, path) }
func (e *Expectation) Put(path string) *Expectation { return e.on(http.MethodPut, path) }
func (e *Expectation) Delete(path string) *Expectation { return e.on(http.MethodDelete, path) }

func (e *Expectation) on(method, path string) *Expectation {
	u, err := url.Parse(path)
	if err != nil {
		panic(fmt.Sprintf("httpmock: invalid path %q: %v", path, err))
	}
	e.Method = method
	e.URL.Path = u.Path
	e.URL.RawQuery = u.RawQuery
	return e
}

// BodyContains requires the request body to contain s. Signed S3 uploads
// arrive aws-chunked, so the document is matched as a substring.
func (e *Expectation) BodyContains(s string) *Expectation {
	e.bodyMatchers = append(e.bodyMatchers, bodyMatcher{
		desc:  fmt.Sprintf("body containing %q", s),
		match: func(b []byte) bool { return bytes.Contains(b, []byte(s)) },
	})
	return e
}

// BodyMatches requires match to accept the request body.
func (e *Expectation) BodyMatches(desc string, match func([]byte) bool) *Expectation {
	e.bodyMatchers = append(e.bodyMatchers, bodyMatcher{desc: desc, match: match})
	return e
}

func (e *Expectation) Reply(statusCode int) *Expectation {
	e.StatusCode = statusCode
	return e
}

func (e *Expectation) BodyString(body string) *Expectation {
	e.RespBody = []byte(body)
	return e
}

func (e *Expectation) Body(body []byte) *Expectation {
	e.RespBody = body
	return e
}

func (e *Expectation) JSON(v any) *Expectation {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("httpmock: failed to marshal JSON: %v", err))
	}
	e.RespBody = data
	e.Headers.Set("Content-Type", "application/json")
	return e
}

func (e *Expectation) Header(key, value string) *Expectation {
	e.Headers.Set(key, value)
	return e
}

// Received returns the request that satisfied e, or nil.
func (e *Expectation) Received() *RecordedRequest {
	DefaultTransport.mu.Lock()
	defer DefaultTransport.mu.Unlock()
	return e.received
}

func (t *MockTransport) add(exp *Expectation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expectations = append(t.expectations, exp)
}

func (t *MockTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expectations = nil
	t.unmatched = nil
}

// IsDone reports whether every registered expectation was hit.
func IsDone() bool {
	DefaultTransport.mu.Lock()
	defer DefaultTransport.mu.Unlock()
	for _, exp := range DefaultTransport.expectations {
		if exp.received == nil {
			return false
		}
	}
	return true
}

// Unmatched lists requests that found no expectation since the last Activate.
func Unmatched() []string {
	DefaultTransport.mu.Lock()
	defer DefaultTransport.mu.Unlock()
	return append([]string(nil), DefaultTransport.unmatched...)
}

func Activate() {
	if http.DefaultClient.Transport == DefaultTransport {
		return
	}
	if http.DefaultClient.Transport != nil {
		previousTransport = http.DefaultClient.Transport
	} else {
		previousTransport = http.DefaultTransport
	}
	http.DefaultClient.Transport = DefaultTransport
}

// Deactivate restores the previous transport and drops all expectations.
func Deactivate() {
	http.DefaultClient.Transport = previousTransport
	DefaultTransport.reset()
}

func (t *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("httpmock: failed to read request body: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var reasons []string
	for _, exp := range t.expectations {
		if exp.received != nil {
			continue
		}
		if reason := exp.check(req, body); reason != "" {
			reasons = append(reasons, reason)
			continue
		}

		exp.received = &RecordedRequest{
			Method: req.Method,
			URL:    req.URL,
			Header: req.Header.Clone(),
			Body:   body,
		}
		return exp.response(req), nil
	}

	line := req.Method + " " + req.URL.String()
	t.unmatched = append(t.unmatched, line)

	extra := ""
	if len(reasons) > 0 {
		extra = " (" + strings.Join(reasons, "; ") + ")"
	}
	return nil, fmt.Errorf("httpmock: no match found for request %s%s", line, extra)
}

// check returns why req does not satisfy e, or "" when it does.
func (e *Expectation) check(req *http.Request, body []byte) string {
	switch {
	case e.Method != "" && e.Method != req.Method:
		return fmt.Sprintf("method mismatch: expected %s got %s", e.Method, req.Method)
	case e.URL.Scheme != req.URL.Scheme:
		return fmt.Sprintf("scheme mismatch: expected %s got %s", e.URL.Scheme, req.URL.Scheme)
	case e.URL.Host != req.URL.Host:
		return fmt.Sprintf("host mismatch: expected %s got %s", e.URL.Host, req.URL.Host)
	case e.URL.Path != req.URL.Path:
		return fmt.Sprintf("path mismatch: expected %s got %s", e.URL.Path, req.URL.Path)
	}

	actual := req.URL.Query()
	for key, want := range e.URL.Query() {
		got, ok := actual[key]
		if !ok {
			return fmt.Sprintf("missing query key %s", key)
		}
		if strings.Join(got, "\x00") != strings.Join(want, "\x00") {
			return fmt.Sprintf("query mismatch for %s: expected %v got %v", key, want, got)
		}
	}

	for _, m := range e.bodyMatchers {
		if !m.match(body) {
			return fmt.Sprintf("expected %s", m.desc)
		}
	}
	return ""
}

func (e *Expectation) response(req *http.Request) *http.Response {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		StatusCode:    status,
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:          io.NopCloser(bytes.NewReader(e.RespBody)),
		Header:        e.Headers.Clone(),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		ContentLength: int64(len(e.RespBody)),
	}
}
