// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing request bodies. Forms arrive
// url-encoded from htmx and as JSON from the calendar script; both are read
// through the same accessor.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// maxBodyBytes bounds every request body read by the parser.
const maxBodyBytes = 1 << 20

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and keeps it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized scalar value.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetAll returns every value of a repeated field in submission order.
// Form fields may be named "key" or "key[]"; a JSON value may be an array
// or a single scalar.
func (p *RequestBodyParser) GetAll(key string) []string {
	var raw []string
	switch {
	case p.jsonData != nil:
		switch val := p.jsonData[key].(type) {
		case nil:
		case []any:
			for _, v := range val {
				raw = append(raw, stringValue(v))
			}
		default:
			raw = []string{stringValue(val)}
		}
	case p.formData != nil:
		raw = p.formData[key]
		if len(raw) == 0 {
			raw = p.formData[key+"[]"]
		}
	}

	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = sanitizeInput(v)
	}
	return out
}

// Has reports whether key was submitted at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		return p.formData.Has(key) || p.formData.Has(key+"[]")
	}
	return false
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseBody reads and parses the request body, answering 400 on failure.
func parseBody(r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, BadRequestError(msgBadRequest)
	}
	return p, nil
}
