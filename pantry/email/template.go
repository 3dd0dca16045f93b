// pantry/email/template.go
package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"
)

// Template is a named subject/text/HTML triple. Subject and Text are
// rendered with text/template; HTML with html/template, so every value
// interpolated into HTML is escaped for its context.
type Template struct {
	Name    string
	Subject string
	Text    string
	HTML    string
}

// TemplateStore holds compiled templates by name. Safe for concurrent use.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]compiledTemplate
}

type compiledTemplate struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]compiledTemplate)}
}

// Register compiles tpl, replacing any template with the same name.
// Missing keys in render data are errors rather than "<no value>".
func (s *TemplateStore) Register(tpl Template) error {
	if strings.TrimSpace(tpl.Name) == "" {
		return fmt.Errorf("email: template name is empty")
	}
	if tpl.Text == "" && tpl.HTML == "" {
		return fmt.Errorf("email: template %s: %w", tpl.Name, ErrEmptyBody)
	}

	var c compiledTemplate
	var err error
	if tpl.Subject != "" {
		if c.subject, err = texttemplate.New(tpl.Name + ".subject").Option("missingkey=error").Parse(tpl.Subject); err != nil {
			return fmt.Errorf("email: parse subject of %s: %w", tpl.Name, err)
		}
	}
	if tpl.Text != "" {
		if c.text, err = texttemplate.New(tpl.Name + ".text").Option("missingkey=error").Parse(tpl.Text); err != nil {
			return fmt.Errorf("email: parse text of %s: %w", tpl.Name, err)
		}
	}
	if tpl.HTML != "" {
		if c.html, err = htmltemplate.New(tpl.Name + ".html").Option("missingkey=error").Parse(tpl.HTML); err != nil {
			return fmt.Errorf("email: parse HTML of %s: %w", tpl.Name, err)
		}
	}

	s.mu.Lock()
	s.templates[tpl.Name] = c
	s.mu.Unlock()
	return nil
}

// Render executes the named template into a Message with Subject, TextBody
// and HTMLBody filled. Recipients and headers are left to the caller.
func (s *TemplateStore) Render(name string, data any) (Message, error) {
	s.mu.RLock()
	c, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return Message{}, fmt.Errorf("email: template %s not found", name)
	}

	var msg Message
	var buf bytes.Buffer

	if c.subject != nil {
		if err := c.subject.Execute(&buf, data); err != nil {
			return Message{}, fmt.Errorf("email: render subject of %s: %w", name, err)
		}
		// a subject is a single header line
		msg.Subject = strings.Join(strings.Fields(buf.String()), " ")
		buf.Reset()
	}
	if c.text != nil {
		if err := c.text.Execute(&buf, data); err != nil {
			return Message{}, fmt.Errorf("email: render text of %s: %w", name, err)
		}
		msg.TextBody = buf.String()
		buf.Reset()
	}
	if c.html != nil {
		if err := c.html.Execute(&buf, data); err != nil {
			return Message{}, fmt.Errorf("email: render HTML of %s: %w", name, err)
		}
		msg.HTMLBody = buf.String()
	}
	return msg, nil
}
