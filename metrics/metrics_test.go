package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAdmission(t *testing.T) {
	before := testutil.ToFloat64(admissions.WithLabelValues("rejected", "honeypot"))
	ObserveAdmission(false, "honeypot")
	if got := testutil.ToFloat64(admissions.WithLabelValues("rejected", "honeypot")); got != before+1 {
		t.Errorf("rejected/honeypot = %v, want %v", got, before+1)
	}

	beforeOK := testutil.ToFloat64(admissions.WithLabelValues("accepted", ""))
	ObserveAdmission(true, "ignored")
	if got := testutil.ToFloat64(admissions.WithLabelValues("accepted", "")); got != beforeOK+1 {
		t.Errorf("accepted = %v, want %v", got, beforeOK+1)
	}
}

func TestObserveDispatch(t *testing.T) {
	sent := testutil.ToFloat64(dispatches.WithLabelValues("operator", "sent"))
	failed := testutil.ToFloat64(dispatches.WithLabelValues("acknowledgment", "failed"))

	ObserveDispatch("operator", nil)
	ObserveDispatch("acknowledgment", errors.New("550 mailbox unavailable"))

	if got := testutil.ToFloat64(dispatches.WithLabelValues("operator", "sent")); got != sent+1 {
		t.Errorf("operator/sent = %v", got)
	}
	if got := testutil.ToFloat64(dispatches.WithLabelValues("acknowledgment", "failed")); got != failed+1 {
		t.Errorf("acknowledgment/failed = %v", got)
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "h"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
