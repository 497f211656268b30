package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"tpay/gateway"
)

const maxBodySize = 64 << 10

// params holds inbound fields from the query string, overridden by a JSON or
// form body
type params map[string]string

func readParams(r *http.Request) (params, error) {
	p := params{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			p[key] = values[0]
		}
	}
	if r.Body == nil {
		return p, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			return nil, &gateway.ValidationError{Field: "body", Reason: "malformed form"}
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				p[key] = values[0]
			}
		}
	default:
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, &gateway.ValidationError{Field: "body", Reason: "unreadable"}
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return p, nil
		}
		if err = p.mergeJSON(data); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p params) mergeJSON(data []byte) error {
	fields := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return &gateway.ValidationError{Field: "body", Reason: "malformed json"}
	}
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
		case string:
			p[key] = v
		case json.Number:
			p[key] = v.String()
		case bool:
			p[key] = strconv.FormatBool(v)
		default:
			return &gateway.ValidationError{Field: key, Reason: "must be a scalar value"}
		}
	}
	return nil
}

// str returns the first non-empty value among the given names
func (p params) str(names ...string) string {
	for _, name := range names {
		if value := p[name]; value != "" {
			return value
		}
	}
	return ""
}

func (p params) has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p params) boolean(name string) (bool, error) {
	value := p[name]
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, &gateway.ValidationError{Field: name, Reason: "must be true or false"}
	}
	return b, nil
}

func (p params) integer(name string) (int, error) {
	value := p[name]
	if value == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return 0, &gateway.ValidationError{Field: name, Reason: fmt.Sprintf("must be a non-negative integer, got %q", value)}
	}
	return i, nil
}
