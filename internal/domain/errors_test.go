package domain

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func TestGatewayError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *GatewayError
		want int
	}{
		{"not found", ErrNotFound("/missing"), http.StatusNotFound},
		{"service not found", ErrServiceNotFound("posts.list"), http.StatusNotFound},
		{"invalid body", ErrInvalidRequestBody("bad json", nil), http.StatusBadRequest},
		{"validation", ErrValidation("missing name", nil), http.StatusUnprocessableEntity},
		{"forbidden", ErrForbidden("access denied"), http.StatusForbidden},
		{"invalid response type", ErrInvalidResponseType("chan"), http.StatusInternalServerError},
		{"server", ErrServer("boom"), http.StatusInternalServerError},
		{"zero code defaults to 500", &GatewayError{Name: "Weird"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGatewayError_JSONShape(t *testing.T) {
	body, err := json.Marshal(ErrServiceNotFound("comments.list"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 4 {
		t.Errorf("error body has %d fields, want exactly 4: %s", len(decoded), body)
	}
	for _, field := range []string{"name", "message", "code", "data"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("error body missing field %q", field)
		}
	}
	data, _ := decoded["data"].(map[string]any)
	if data["action"] != "comments.list" {
		t.Errorf("data.action = %v, want the offending action name", data["action"])
	}
}

func TestFromError(t *testing.T) {
	ge := ErrForbidden("denied")
	if got := FromError(ge); got != ge {
		t.Error("FromError() should return GatewayError values unchanged")
	}

	wrapped := FromError(errors.New("database on fire"))
	if wrapped.Name != ErrNameServer {
		t.Errorf("Name = %q, want %q", wrapped.Name, ErrNameServer)
	}
	if wrapped.Code != http.StatusInternalServerError {
		t.Errorf("Code = %d, want 500", wrapped.Code)
	}
	if wrapped.Message != "database on fire" {
		t.Errorf("Message = %q, want original error text", wrapped.Message)
	}
}
