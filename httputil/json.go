// httputil/json.go
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Body errors. Decoders wrap them so callers can tell why a body was
// unusable; none of them is meant to reach a client verbatim.
var (
	ErrEmptyBody      = errors.New("request body is empty")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrMultipleValues = errors.New("request body contains multiple JSON values")
	ErrMalformedJSON  = errors.New("malformed JSON")
)

// Failure is the JSON envelope for every non-success response:
//
//	{"success":false,"error":"Method not allowed"}
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteJSON writes v with status. Responses are never cached. A status
// outside 100..599 becomes 500. An encoding failure after the header is
// sent can only be reported on stderr.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "httputil: encode %T after header sent: %v\n", v, err)
	}
}

// WriteFailure writes the failure envelope. message must be safe for
// clients; never pass a transport error.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Failure{Success: false, Error: message})
}

// DecodeJSON decodes exactly one JSON value from the body into v. Fields v
// does not declare are ignored.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return ErrEmptyBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return describeJSONError(err)
	}
	if dec.More() {
		return ErrMultipleValues
	}
	return nil
}

// DecodeBody picks DecodeForm for urlencoded and multipart bodies and
// DecodeJSON for everything else.
func DecodeBody(r *http.Request, v any) error {
	if IsForm(r) {
		return DecodeForm(r, v)
	}
	return DecodeJSON(r, v)
}

func describeJSONError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return ErrEmptyBody
	case errors.As(err, &maxErr):
		return fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, maxErr.Limit)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: unexpected end of body", ErrMalformedJSON)
	case errors.As(err, &syntaxErr):
		return fmt.Errorf("%w at offset %d", ErrMalformedJSON, syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Errorf("%w: field %q cannot hold a %s", ErrMalformedJSON, typeErr.Field, typeErr.Value)
	}
	return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
}
