package middleware

import (
	"encoding/json"
	"net/http"

	"datatidy/internal/infrastructure"
)

// Problem is the RFC 7807 body written by middleware that rejects a request
// before it reaches a handler.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
}

// Render writes the problem as application/problem+json.
func (p Problem) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// ProblemFromStatus creates a Problem from an HTTP status code
func ProblemFromStatus(status int, detail string, traceID string) Problem {
	var title, problemType string

	switch status {
	case http.StatusBadRequest:
		title, problemType = "Bad Request", "/errors/bad-request"
	case http.StatusNotFound:
		title, problemType = "Not Found", "/errors/not-found"
	case http.StatusRequestEntityTooLarge:
		title, problemType = "Payload Too Large", "/errors/payload-too-large"
	case http.StatusUnsupportedMediaType:
		title, problemType = "Unsupported Media Type", "/errors/unsupported-media-type"
	case http.StatusTooManyRequests:
		title, problemType = "Too Many Requests", "/errors/rate-limit"
	case http.StatusInternalServerError:
		title, problemType = "Internal Server Error", "/errors/internal"
	case http.StatusGatewayTimeout:
		title, problemType = "Request Timeout", "/errors/timeout"
	default:
		title, problemType = http.StatusText(status), "/errors/unknown"
	}

	return Problem{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
		Trace:  traceID,
	}
}

// writeProblem renders a status problem for r.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	_ = ProblemFromStatus(status, detail, infrastructure.GetTraceID(r.Context())).Render(w, r)
}
