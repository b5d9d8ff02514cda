package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cory-johannsen/marksman/internal/game/marksman"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// FieldValue is raw field text. It unmarshals from a JSON string or number so that
// clients may send either "6" or 6; null leaves the field empty.
type FieldValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FieldValue(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("field value must be a string or a number: %w", err)
		}
		*v = FieldValue(n.String())
	}
	return nil
}

// ResolveRequest is the body of POST /api/resolve and POST /api/simulate. Field
// keys accept the same names and aliases as the Telnet set command.
type ResolveRequest struct {
	Policy string                `json:"policy"`
	Preset string                `json:"preset,omitempty"`
	Fields map[string]FieldValue `json:"fields"`
	// Trials is only read by /api/simulate; 0 uses the server default.
	Trials int `json:"trials,omitempty"`
}

// ResolveResponse pairs a result with its hit-count distribution.
type ResolveResponse struct {
	Result       marksman.AttackResult `json:"result"`
	Distribution marksman.Distribution `json:"distribution"`
}

func newResolveResponse(r marksman.AttackResult) ResolveResponse {
	return ResolveResponse{Result: r, Distribution: marksman.HitDistribution(r)}
}

// fieldsOf resolves every key of raw to a field.
func fieldsOf(raw map[string]FieldValue) (marksman.Fields, error) {
	fields := make(marksman.Fields, len(raw))
	for name, value := range raw {
		f, err := marksman.ParseField(name)
		if err != nil {
			return nil, err
		}
		fields[f] = string(value)
	}
	return fields, nil
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: msg, Status: status})
}
