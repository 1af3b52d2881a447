package tools

import (
	"encoding/json"
	"net/http"
)

// Kind classifies a failed result so HTTP callers can pick a status code.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindUpstream
)

// Result is the normalized output of every tool. It serializes flat:
// {"success": true, ...Data} or {"success": false, "error": "..."}.
type Result struct {
	Success bool
	Error   string
	Kind    Kind
	Data    map[string]any
}

func OK(data map[string]any) Result {
	if data == nil {
		data = map[string]any{}
	}
	return Result{Success: true, Data: data}
}

func Fail(kind Kind, msg string) Result {
	return Result{Kind: kind, Error: msg}
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Data)+2)
	for k, v := range r.Data {
		out[k] = v
	}
	out["success"] = r.Success
	if !r.Success {
		out["error"] = r.Error
	}
	return json.Marshal(out)
}

func (r Result) HTTPStatus() int {
	if r.Success {
		return http.StatusOK
	}
	switch r.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
