package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

const maxBodySize = 1 << 20

// ErrorResponse is the JSON body of every non-2xx API response. Kind,
// Category and Reason are set for ledger rejections, Field for request
// validation failures.
type ErrorResponse struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Field    string `json:"field,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// ValidateRequest rejects POST and PUT requests that do not carry a JSON body
// and caps the body size.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				WriteError(w, http.StatusUnsupportedMediaType, ErrorResponse{Error: "invalid Content-Type, expected application/json"})
				return
			}

			if r.ContentLength == 0 {
				WriteError(w, http.StatusBadRequest, ErrorResponse{Error: "request body cannot be empty"})
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}
