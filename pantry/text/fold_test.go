package text

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"plain", "plain"},
		{"  Google LLC ", "google llc"},
		{"Ágent Café", "agent cafe"},
		{"Straße", "straße"},
		{"RÓBERTTUM", "roberttum"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatcher_FoldsInputAndNeedles(t *testing.T) {
	needles := []string{"roberttum", " ", "Google"}

	tests := []struct {
		in        string
		wantMatch string
		wantOK    bool
	}{
		{"Róberttum Smith", "roberttum", true},
		{"GOOGLE Ireland", "Google", true},
		{"Acme", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		m, ok := NewMatcher(needles).Match(tt.in)
		if ok != tt.wantOK || m != tt.wantMatch {
			t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.in, m, ok, tt.wantMatch, tt.wantOK)
		}
	}
}

func TestMatcher(t *testing.T) {
	m := NewMatcher([]string{"", "  ", "Ágent", "spam"})
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if n, ok := m.Match("Secret AGENT Co"); !ok || n != "Ágent" {
		t.Errorf("Match = %q, %v; want Ágent, true", n, ok)
	}
	if _, ok := m.Match("Acme"); ok {
		t.Error("Acme matched")
	}

	var empty *Matcher
	if _, ok := empty.Match("anything"); ok {
		t.Error("nil matcher matched")
	}
	if _, ok := NewMatcher(nil).Match("anything"); ok {
		t.Error("empty matcher matched")
	}
}
