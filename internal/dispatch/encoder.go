package dispatch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/actionmesh/gateway/internal/domain"
)

// resultKind is the explicit classification of an invocation result.
// Exactly one kind applies to any value; the encoder switches on it
// instead of probing types ad hoc.
type resultKind int

const (
	kindAbsent resultKind = iota
	kindBinary
	kindEnvelope
	kindStream
	kindText
	kindStructured
)

// classify tags a result value, evaluated in priority order: absent,
// raw bytes, serialized binary envelope, readable stream, text, and
// everything else as structured.
func classify(v any) resultKind {
	if v == nil {
		return kindAbsent
	}
	switch t := v.(type) {
	case []byte:
		return kindBinary
	case map[string]any:
		if isBufferEnvelope(t) {
			return kindEnvelope
		}
		return kindStructured
	case io.Reader:
		return kindStream
	case string:
		return kindText
	default:
		return kindStructured
	}
}

// isBufferEnvelope recognizes the JSON-transit form binary values take:
// {"type": "Buffer", "data": [...]}.
func isBufferEnvelope(m map[string]any) bool {
	if m["type"] != "Buffer" {
		return false
	}
	_, ok := m["data"].([]any)
	return ok
}

// decodeBufferEnvelope converts the envelope's numeric data array back
// into raw bytes.
func decodeBufferEnvelope(m map[string]any) ([]byte, error) {
	data := m["data"].([]any)
	buf := make([]byte, len(data))
	for i, e := range data {
		n, ok := e.(float64)
		if !ok || n < 0 || n > 255 || n != float64(byte(n)) {
			return nil, fmt.Errorf("buffer envelope byte %d is not a byte value", i)
		}
		buf[i] = byte(n)
	}
	return buf, nil
}

// WriteResult encodes an invocation result onto the response, selecting
// exactly one branch from the result's kind and the action's declared
// response content type. It returns the HTTP status written. When
// encoding itself fails nothing has been written yet and the returned
// error (InvalidResponseType) must be routed to the error mapper.
func WriteResult(w http.ResponseWriter, requestID, declared string, result any) (int, error) {
	if requestID != "" {
		w.Header().Set("Request-Id", requestID)
	}

	switch classify(result) {
	case kindAbsent:
		w.WriteHeader(http.StatusOK)
		return http.StatusOK, nil

	case kindBinary:
		return writeBytes(w, declared, result.([]byte))

	case kindEnvelope:
		buf, err := decodeBufferEnvelope(result.(map[string]any))
		if err != nil {
			return 0, domain.ErrInvalidResponseType(err.Error())
		}
		return writeBytes(w, declared, buf)

	case kindStream:
		w.Header().Set("Content-Type", orDefault(declared, "application/octet-stream"))
		w.WriteHeader(http.StatusOK)
		rd := result.(io.Reader)
		// Forward bytes as they arrive; a mid-stream failure cannot be
		// remapped once the status line is out, so it is the caller's
		// log line, not a second response.
		_, _ = io.Copy(w, rd)
		if c, ok := rd.(io.Closer); ok {
			_ = c.Close()
		}
		return http.StatusOK, nil

	case kindText:
		s := result.(string)
		if declared == "" {
			return writeJSON(w, s)
		}
		w.Header().Set("Content-Type", declared)
		w.Header().Set("Content-Length", strconv.Itoa(len(s)))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, s)
		return http.StatusOK, nil

	default: // kindStructured
		if declared != "" {
			return writeJSONoverride(w, declared, result)
		}
		return writeJSON(w, result)
	}
}

func writeBytes(w http.ResponseWriter, declared string, buf []byte) (int, error) {
	w.Header().Set("Content-Type", orDefault(declared, "application/octet-stream"))
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
	return http.StatusOK, nil
}

// writeJSON serializes v fully before touching the response, so a
// marshalling failure can still become a proper error response.
func writeJSON(w http.ResponseWriter, v any) (int, error) {
	return writeJSONoverride(w, "application/json; charset=utf-8", v)
}

func writeJSONoverride(w http.ResponseWriter, contentType string, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, domain.ErrInvalidResponseType("result is not JSON-encodable: " + err.Error())
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return http.StatusOK, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
