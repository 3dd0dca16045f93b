package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestWriteFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFailure(rec, http.StatusMethodNotAllowed, "Method not allowed")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false || body["error"] != "Method not allowed" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteJSON_ClampsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, 42, map[string]bool{"ok": true})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"Name"`
	}
	decode := func(body string) (payload, error) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return p, DecodeJSON(req, &p)
	}

	p, err := decode(`{"Name":"Jane","extra":1}`)
	if err != nil || p.Name != "Jane" {
		t.Fatalf("unknown fields: %+v, %v", p, err)
	}

	tests := []struct {
		body string
		want error
	}{
		{"", ErrEmptyBody},
		{`{"Name":`, ErrMalformedJSON},
		{`{"Name" "x"}`, ErrMalformedJSON},
		{`{"Name":42}`, ErrMalformedJSON},
		{`{"Name":"a"} {"Name":"b"}`, ErrMultipleValues},
	}
	for _, tt := range tests {
		if _, err := decode(tt.body); !errors.Is(err, tt.want) {
			t.Errorf("DecodeJSON(%q) = %v, want %v", tt.body, err, tt.want)
		}
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"`+strings.Repeat("x", 100)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var v map[string]any
	if err := DecodeJSON(req, &v); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestDecodeBody_PicksDecoder(t *testing.T) {
	type payload struct {
		Name string `json:"Name" schema:"Name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Name=Form"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var p payload
	if err := DecodeBody(req, &p); err != nil || p.Name != "Form" {
		t.Fatalf("form: %+v, %v", p, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"Plain"}`))
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	p = payload{}
	if err := DecodeBody(req, &p); err != nil || p.Name != "Plain" {
		t.Fatalf("text/plain: %+v, %v", p, err)
	}
}

func TestDecodeForm(t *testing.T) {
	type payload struct {
		Name    string `schema:"Name"`
		Website string `schema:"website"`
	}

	form := url.Values{"Name": {"Jane"}, "website": {""}, "unknown": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var p payload
	if err := DecodeForm(req, &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Jane" || p.Website != "" {
		t.Errorf("decoded = %+v", p)
	}
}

func TestIsForm(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"", false},
		{"application/json", false},
		{"text/plain;charset=UTF-8", false},
		{"application/x-www-form-urlencoded", true},
		{"Application/X-WWW-Form-Urlencoded; charset=utf-8", true},
		{"multipart/form-data; boundary=x", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.ct != "" {
			req.Header.Set("Content-Type", tt.ct)
		}
		if got := IsForm(req); got != tt.want {
			t.Errorf("IsForm(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
