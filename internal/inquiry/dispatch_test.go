package inquiry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBrand = Branding{
	SiteName:       "Gnosis Assets",
	SiteURL:        "https://gnosisbase.com",
	Tagline:        "Identity Infrastructure for the AI Era.",
	HeaderImageURL: "https://gnosisbase.com/gnosis-assets-header.png",
}

func newTestDispatcher(t *testing.T, s *recordingSender) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherConfig{
		Sender:        s,
		OperatorEmail: "ops@gnosisbase.com",
		OperatorName:  "GNOSIS Assets",
		Brand:         testBrand,
		Now:           fixedNow,
	})
	require.NoError(t, err)
	return d
}

func testInquiry() Inquiry {
	in, _ := Normalize(genuine())
	return in
}

func TestDispatch_BothSent(t *testing.T) {
	s := newRecordingSender()
	d := newTestDispatcher(t, s)

	meta := RequestMeta{ClientIP: "198.51.100.20", Origin: "https://gnosisbase.com", Country: "DE"}
	res, err := d.Dispatch(context.Background(), testInquiry(), meta)
	require.NoError(t, err)
	assert.Equal(t, DispatchResult{OperatorNotified: true, AcknowledgmentSent: true}, res)

	sent := s.Sent()
	require.Len(t, sent, 2)

	op := sent[0]
	assert.Equal(t, []string{"ops@gnosisbase.com"}, op.To)
	assert.Equal(t, "jane@example.com", op.ReplyTo)
	assert.Equal(t, "New Inquiry: Bundle A – from gnosisbase.com", op.Subject)
	for _, want := range []string{
		"Name: Jane Doe", "Company: Acme", "Email: jane@example.com",
		"Asset Bundle: Bundle A", "Message:\nInterested",
		"IP: 198.51.100.20", "Country: DE", "Origin: https://gnosisbase.com", "Referer: -",
		"Received: 2023-11-14T22:13:20Z",
	} {
		assert.Contains(t, op.TextBody, want)
	}
	assert.Empty(t, op.HTMLBody)
	assert.Empty(t, op.Headers)

	ack := sent[1]
	assert.Equal(t, []string{"jane@example.com"}, ack.To)
	assert.Equal(t, `"GNOSIS Assets" <ops@gnosisbase.com>`, ack.ReplyTo)
	assert.Equal(t, "Confirmation: Inquiry Received – Gnosis Assets", ack.Subject)
	assert.Equal(t, "auto-replied", ack.Headers["Auto-Submitted"])
	assert.Equal(t, "All", ack.Headers["X-Auto-Response-Suppress"])
	assert.Contains(t, ack.TextBody, "24 business hours")
	assert.Contains(t, ack.TextBody, "Identity Infrastructure for the AI Era.")
	assert.Contains(t, ack.HTMLBody, "Hi Jane Doe,")
	assert.Contains(t, ack.HTMLBody, "Visit gnosisbase.com")
}

func TestDispatch_AckFailureIsIsolated(t *testing.T) {
	s := newRecordingSender().failCall(2, nil)
	d := newTestDispatcher(t, s)

	res, err := d.Dispatch(context.Background(), testInquiry(), RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.OperatorNotified)
	assert.False(t, res.AcknowledgmentSent)
	assert.Equal(t, AckFailedMessage, res.AcknowledgmentError)
	assert.NotContains(t, res.AcknowledgmentError, "550", "transport detail must not leak")
	assert.Equal(t, 2, s.Calls())
}

func TestDispatch_OperatorFailureStops(t *testing.T) {
	s := newRecordingSender().failCall(1, nil)
	d := newTestDispatcher(t, s)

	res, err := d.Dispatch(context.Background(), testInquiry(), RequestMeta{})
	require.Error(t, err)
	assert.False(t, res.OperatorNotified)
	assert.Equal(t, 1, s.Calls(), "no acknowledgment after operator failure")
}

func TestDispatch_HTMLEscapesSubmittedFields(t *testing.T) {
	s := newRecordingSender()
	d := newTestDispatcher(t, s)

	in := testInquiry()
	in.Name = `<img src=x onerror="alert(1)">`
	in.Company = `Acme & Sons <b>`
	in.AssetBundle = `"><script>steal()</script>`

	_, err := d.Dispatch(context.Background(), in, RequestMeta{})
	require.NoError(t, err)

	html := s.Sent()[1].HTMLBody
	assert.NotContains(t, html, "<img src=x")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<b>")
	assert.Contains(t, html, "&lt;img src=x onerror=&#34;alert(1)&#34;&gt;")
	assert.Contains(t, html, "Acme &amp; Sons &lt;b&gt;")
}

func TestDispatch_SubjectCannotInjectHeaders(t *testing.T) {
	s := newRecordingSender()
	d := newTestDispatcher(t, s)

	in := testInquiry()
	in.AssetBundle = "Bundle\r\nBcc: victim@example.com"
	_, err := d.Dispatch(context.Background(), in, RequestMeta{})
	require.NoError(t, err)

	subj := s.Sent()[0].Subject
	assert.False(t, strings.ContainsAny(subj, "\r\n"), subj)
}

func TestDispatch_InvalidSubmitterAddress(t *testing.T) {
	s := newRecordingSender()
	d := newTestDispatcher(t, s)

	in := testInquiry()
	in.Email = "not an address"
	res, err := d.Dispatch(context.Background(), in, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.OperatorNotified)
	assert.Empty(t, s.Sent()[0].ReplyTo)
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(DispatcherConfig{OperatorEmail: "ops@example.com"})
	assert.Error(t, err, "nil sender")

	_, err = NewDispatcher(DispatcherConfig{Sender: newRecordingSender(), OperatorEmail: "nope"})
	assert.Error(t, err, "bad operator address")
}

func TestBranding_SiteHost(t *testing.T) {
	assert.Equal(t, "gnosisbase.com", Branding{SiteURL: "https://www.gnosisbase.com/"}.SiteHost())
	assert.Equal(t, "gnosisbase.com", Branding{SiteURL: "gnosisbase.com"}.SiteHost())
}
