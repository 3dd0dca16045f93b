package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDurationFlexible(t *testing.T) {
	def := 5 * time.Second
	tests := []struct {
		name    string
		raw     any
		want    time.Duration
		wantErr bool
	}{
		{"nil uses default", nil, def, false},
		{"empty string uses default", "  ", def, false},
		{"go duration", "2m", 2 * time.Minute, false},
		{"fractional seconds string", "2.5", 2500 * time.Millisecond, false},
		{"int seconds", 15, 15 * time.Second, false},
		{"int64 seconds", int64(3), 3 * time.Second, false},
		{"float seconds", 0.5, 500 * time.Millisecond, false},
		{"duration value", 90 * time.Second, 90 * time.Second, false},
		{"zero rejected", "0s", def, true},
		{"negative rejected", -1, def, true},
		{"garbage rejected", "soon", def, true},
		{"bool ignored", true, def, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDurationFlexible(tt.raw, def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeStringList(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"json array", `["https://a.example","https://b.example"]`, []string{"https://a.example", "https://b.example"}},
		{"comma separated", " 10.0.0.1 , 192.168.,", []string{"10.0.0.1", "192.168."}},
		{"empty", "", nil},
		{"decoded list", []interface{}{"x", 1}, []string{"x", "1"}},
		{"string slice", []string{"y"}, []string{"y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeStringList("k", tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := decodeStringList("k", `["unterminated`); err == nil {
		t.Error("expected error for malformed JSON array")
	}
}

func TestAppConfigValues(t *testing.T) {
	vals := AppConfigValues{
		"port":    "465",
		"flag":    "true",
		"name":    "  Gnosis  ",
		"list":    []string{"a"},
		"timeout": "12s",
	}

	if got := vals.Int("port"); got != 465 {
		t.Errorf("Int = %d, want 465", got)
	}
	if !vals.Bool("flag") {
		t.Error("Bool = false, want true")
	}
	if got := vals.String("name"); got != "Gnosis" {
		t.Errorf("String = %q, want %q", got, "Gnosis")
	}
	if got := vals.StringSlice("list"); len(got) != 1 || got[0] != "a" {
		t.Errorf("StringSlice = %v", got)
	}
	if got := vals.Duration("timeout", time.Second); got != 12*time.Second {
		t.Errorf("Duration = %v", got)
	}
	if got := vals.Duration("missing", time.Second); got != time.Second {
		t.Errorf("Duration default = %v", got)
	}
}

func TestValidateCoreConfig(t *testing.T) {
	ok := CoreConfig{HTTP: HTTPConfig{HTTPPort: 8080, HTTPSPort: 443}}
	if err := validateCoreConfig(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := CoreConfig{
		HTTP: HTTPConfig{HTTPPort: 0, HTTPSPort: 443, UseHTTPS: true},
		TLS:  TLSConfig{UseLetsEncrypt: true},
	}
	err := validateCoreConfig(bad)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"missing:", "lets_encrypt_email", "http_port must be in 1..65535"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestProblems(t *testing.T) {
	var p Problems
	if p.Err("app") != nil {
		t.Fatal("empty Problems should be nil")
	}
	p.Missing("operator_email")
	p.Invalid("smtp_port must be in 1..65535")
	err := p.Err("inquiry configuration errors")
	if err == nil || !strings.HasPrefix(err.Error(), "inquiry configuration errors: missing: operator_email | invalid:") {
		t.Errorf("unexpected error: %v", err)
	}
}
