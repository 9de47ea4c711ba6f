// Package httpx provides HTTP response utilities following RFC7807 problem
// details, plus NDJSON streaming for search results.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

// Stream writes newline-delimited JSON, flushing after every record so a
// slow consumer sees results as they are produced.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewStream prepares an NDJSON stream over w.
func NewStream(w http.ResponseWriter) *Stream {
	flusher, _ := w.(http.Flusher)
	return &Stream{w: w, flusher: flusher}
}

// Send encodes one record. Headers are committed on the first record.
func (s *Stream) Send(record any) error {
	if !s.started {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if err := json.NewEncoder(s.w).Encode(record); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Started reports whether any record has been written yet.
func (s *Stream) Started() bool {
	return s.started
}
