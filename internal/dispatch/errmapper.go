package dispatch

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/actionmesh/gateway/internal/domain"
)

// WriteError maps any pipeline failure to the structured JSON error
// response: a body of exactly {name, message, code, data} and an HTTP
// status taken from the error's code, else 500. It returns the status
// written.
func WriteError(w http.ResponseWriter, requestID string, err error) int {
	ge := domain.FromError(err)
	status := ge.HTTPStatusCode()

	body, merr := json.Marshal(ge)
	if merr != nil {
		// Unmarshallable error data; degrade to the bare error.
		body, _ = json.Marshal(domain.NewError(ge.Name, ge.Message, ge.Code))
	}

	if requestID != "" {
		w.Header().Set("Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return status
}
