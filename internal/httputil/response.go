// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes data as JSON with the given status code. The payload
// is marshaled before any header is sent so an encoding failure still
// produces a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	// Kind is the conversion failure class, when one applies.
	Kind string `json:"kind,omitempty"`
}

// RespondError writes an RFC 7807 problem response.
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondProblem(w, Problem{Status: status, Detail: detail})
}

// RespondProblem writes p, filling Type and Title from its status.
func RespondProblem(w http.ResponseWriter, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	w.Write(payload)
}
