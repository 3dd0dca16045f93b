// httputil/form.go
package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/schema"
)

// maxMultipartMemory bounds the in-memory part of a multipart body; the
// request body size limit middleware caps the total.
const maxMultipartMemory = 1 << 20

// formDecoder is safe for concurrent use once configured; it caches struct
// metadata across requests.
var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.ZeroEmpty(true)
	return d
}()

// IsForm reports whether the request declares a urlencoded or multipart
// body. Everything else, including text/plain from a bare fetch() with a
// stringified payload, is read as JSON.
func IsForm(r *http.Request) bool {
	ct := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// DecodeForm parses an application/x-www-form-urlencoded or multipart body
// and decodes it into dst using `schema:"..."` struct tags.
func DecodeForm(r *http.Request, dst any) error {
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return formError("parse multipart form", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return formError("parse form", err)
	}
	if err := formDecoder.Decode(dst, r.PostForm); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}

func formError(op string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%s: %w", op, ErrBodyTooLarge)
	}
	return fmt.Errorf("%s: %w", op, err)
}
