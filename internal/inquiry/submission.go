package inquiry

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Field bounds, in characters.
const (
	MaxNameLen    = 120
	MaxCompanyLen = 120
	MaxBundleLen  = 120
	MaxEmailLen   = 200
	MaxMessageLen = 4000
)

// Defaults substituted for absent or blank fields.
const (
	DefaultName    = "Unknown"
	DefaultCompany = "Not specified"
	DefaultBundle  = "General"
	DefaultMessage = "(no message)"
)

// ErrMissingEmail is returned by Normalize when no email survives trimming.
var ErrMissingEmail = errors.New("inquiry: email is required")

// Text is a form value that tolerates JSON strings, numbers, booleans and
// null, so a client sending {"Name": 42} still yields a usable string.
// false and numeric zero read as empty, like null.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case b[0] == '{' || b[0] == '[':
		// objects and arrays carry no usable text
		*t = ""
	case bytes.Equal(b, []byte("false")) || isZeroNumber(b):
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

func isZeroNumber(b []byte) bool {
	f, err := strconv.ParseFloat(string(b), 64)
	return err == nil && f == 0
}

func (t *Text) UnmarshalText(b []byte) error {
	*t = Text(b)
	return nil
}

// Timestamp is the client-reported moment the form was shown, in Unix
// milliseconds. Zero means unknown. Values that are not numbers decode to
// zero instead of failing the request.
type Timestamp int64

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	var t Text
	if err := t.UnmarshalJSON(b); err != nil {
		*ts = 0
		return nil
	}
	*ts = parseTimestamp(string(t))
	return nil
}

func (ts *Timestamp) UnmarshalText(b []byte) error {
	*ts = parseTimestamp(string(b))
	return nil
}

// Time returns the timestamp as a time.Time; ok is false when unknown.
func (ts Timestamp) Time() (t time.Time, ok bool) {
	if ts <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ts)), true
}

func parseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Timestamp(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return Timestamp(f)
}

// RawSubmission is the request body as sent by the inquiry form. JSON and
// form-encoded bodies use the same keys.
type RawSubmission struct {
	Name        Text      `json:"Name" schema:"Name"`
	EmailLower  Text      `json:"email" schema:"email"`
	Email       Text      `json:"Email" schema:"Email"`
	Company     Text      `json:"Company" schema:"Company"`
	AssetBundle Text      `json:"Selected_Asset_Bundle" schema:"Selected_Asset_Bundle"`
	Message     Text      `json:"Message" schema:"Message"`
	Website     Text      `json:"website" schema:"website"`
	FormStartTs Timestamp `json:"formStartTs" schema:"formStartTs"`
}

// Submission is one untrusted inquiry as received, with the two email
// spellings merged. Values are not yet trimmed, defaulted or bounded.
type Submission struct {
	Name        string
	Company     string
	Email       string
	AssetBundle string
	Message     string
	Honeypot    string
	FormStart   Timestamp
}

// Submission merges the email spellings; "email" wins over "Email" when
// both carry a non-blank value.
func (r RawSubmission) Submission() Submission {
	email := string(r.EmailLower)
	if strings.TrimSpace(email) == "" {
		email = string(r.Email)
	}
	return Submission{
		Name:        string(r.Name),
		Company:     string(r.Company),
		Email:       email,
		AssetBundle: string(r.AssetBundle),
		Message:     string(r.Message),
		Honeypot:    string(r.Website),
		FormStart:   r.FormStartTs,
	}
}

// Inquiry is a normalized submission: trimmed, defaulted and bounded.
type Inquiry struct {
	Name        string
	Company     string
	Email       string
	AssetBundle string
	Message     string
}

// Normalize trims, defaults and truncates every field of s. It always
// returns a usable Inquiry; the error is ErrMissingEmail when the email is
// blank, and nil otherwise. Normalize(Normalize(x)) == Normalize(x).
func Normalize(s Submission) (Inquiry, error) {
	in := Inquiry{
		Name:        normalizeField(s.Name, DefaultName, MaxNameLen),
		Company:     normalizeField(s.Company, DefaultCompany, MaxCompanyLen),
		Email:       normalizeEmail(s.Email),
		AssetBundle: normalizeField(s.AssetBundle, DefaultBundle, MaxBundleLen),
		Message:     normalizeField(s.Message, DefaultMessage, MaxMessageLen),
	}
	if in.Email == "" {
		return in, ErrMissingEmail
	}
	return in, nil
}

// Submission converts back, so an Inquiry can be normalized again.
func (in Inquiry) Submission() Submission {
	return Submission{
		Name:        in.Name,
		Company:     in.Company,
		Email:       in.Email,
		AssetBundle: in.AssetBundle,
		Message:     in.Message,
	}
}

func normalizeEmail(s string) string {
	return normalizeField(s, "", MaxEmailLen)
}

// normalizeField trims s, substitutes def when blank, and cuts the result
// to max characters. A cut that exposes trailing space is trimmed again so
// the output is a fixed point.
func normalizeField(s, def string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			s = s[:i]
			break
		}
		n++
	}
	return strings.TrimSpace(s)
}
