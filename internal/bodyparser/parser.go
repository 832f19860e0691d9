// Package bodyparser turns raw request bodies into structured parameter
// fields. Parsers run strictly one after another over the same body
// bytes, and the chain stops at the first failure.
package bodyparser

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// Parser decodes one content type. Parse returns (nil, nil) when the
// content type is not its own; a non-nil error aborts the whole chain.
type Parser interface {
	Name() string
	Parse(contentType string, body []byte) (map[string]any, error)
}

// New instantiates the parser configured under the given name. Unknown
// names are a configuration error, reported at route-table build time.
func New(name string) (Parser, error) {
	switch name {
	case "json":
		return jsonParser{}, nil
	case "urlencoded":
		return urlencodedParser{}, nil
	default:
		return nil, fmt.Errorf("unknown body parser %q", name)
	}
}

// mediaType extracts the bare media type, dropping charset parameters.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

type jsonParser struct{}

func (jsonParser) Name() string { return "json" }

func (jsonParser) Parse(contentType string, body []byte) (map[string]any, error) {
	if mediaType(contentType) != "application/json" {
		return nil, nil
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("JSON body must be an object")
	}
	return fields, nil
}

type urlencodedParser struct{}

func (urlencodedParser) Name() string { return "urlencoded" }

func (urlencodedParser) Parse(contentType string, body []byte) (map[string]any, error) {
	if mediaType(contentType) != "application/x-www-form-urlencoded" {
		return nil, nil
	}
	if len(body) == 0 {
		return nil, nil
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	fields := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			fields[k] = vs[0]
		} else {
			fields[k] = vs
		}
	}
	return fields, nil
}
