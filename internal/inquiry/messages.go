package inquiry

import (
	"embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/dalemusser/inquiry/pantry/email"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	operatorTemplate = "operator"
	ackTemplate      = "acknowledgment"
)

// Auto-reply headers set on every acknowledgment so receiving systems do
// not answer it (RFC 3834, plus the Exchange-specific suppression header).
var ackHeaders = map[string]string{
	"Auto-Submitted":           "auto-replied",
	"X-Auto-Response-Suppress": "All",
}

// Branding fills the site-specific parts of both messages.
type Branding struct {
	SiteName       string // "Gnosis Assets"
	SiteURL        string // "https://gnosisbase.com"
	Tagline        string // optional line under the signature
	HeaderImageURL string // optional banner in the HTML acknowledgment
}

// SiteHost is the host part of SiteURL, or SiteURL itself when it does not parse.
func (b Branding) SiteHost() string {
	u, err := url.Parse(b.SiteURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(b.SiteURL, "https://"), "http://")
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

type messageData struct {
	Inquiry    Inquiry
	Meta       RequestMeta
	Brand      Branding
	SiteHost   string
	ReceivedAt string
}

// newTemplateStore registers the operator and acknowledgment templates.
// Subjects and text bodies are plain text; the HTML body is escaped by
// html/template.
func newTemplateStore() (*email.TemplateStore, error) {
	read := func(name string) (string, error) {
		b, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return "", fmt.Errorf("inquiry: read template %s: %w", name, err)
		}
		return string(b), nil
	}

	opText, err := read("operator.txt.tmpl")
	if err != nil {
		return nil, err
	}
	ackText, err := read("ack.txt.tmpl")
	if err != nil {
		return nil, err
	}
	ackHTML, err := read("ack.html.tmpl")
	if err != nil {
		return nil, err
	}

	store := email.NewTemplateStore()
	if err := store.Register(email.Template{
		Name:    operatorTemplate,
		Subject: "New Inquiry: {{.Inquiry.AssetBundle}} – from {{.SiteHost}}",
		Text:    opText,
	}); err != nil {
		return nil, err
	}
	if err := store.Register(email.Template{
		Name:    ackTemplate,
		Subject: "Confirmation: Inquiry Received – {{.Brand.SiteName}}",
		Text:    ackText,
		HTML:    ackHTML,
	}); err != nil {
		return nil, err
	}
	return store, nil
}
