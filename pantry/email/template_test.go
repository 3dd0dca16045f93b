package email

import (
	"strings"
	"testing"
)

func TestTemplateStore_RenderEscapesHTML(t *testing.T) {
	s := NewTemplateStore()
	err := s.Register(Template{
		Name:    "ack",
		Subject: "Hello {{.Name}}",
		Text:    "Hi {{.Name}}",
		HTML:    "<p>Hi {{.Name}}</p>",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	msg, err := s.Render("ack", map[string]string{"Name": `<script>alert("x")</script>`})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(msg.HTMLBody, "<script>") {
		t.Errorf("HTML body not escaped: %s", msg.HTMLBody)
	}
	if !strings.Contains(msg.HTMLBody, "&lt;script&gt;") {
		t.Errorf("HTML body = %s", msg.HTMLBody)
	}
	if msg.TextBody != `Hi <script>alert("x")</script>` {
		t.Errorf("text body = %q", msg.TextBody)
	}
}

func TestTemplateStore_SubjectIsOneLine(t *testing.T) {
	s := NewTemplateStore()
	if err := s.Register(Template{Name: "op", Subject: "New: {{.B}}", Text: "x"}); err != nil {
		t.Fatal(err)
	}
	msg, err := s.Render("op", map[string]string{"B": "a\r\nBcc: victim@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		t.Errorf("subject contains line break: %q", msg.Subject)
	}
}

func TestTemplateStore_Errors(t *testing.T) {
	s := NewTemplateStore()
	if err := s.Register(Template{Name: "", Text: "x"}); err == nil {
		t.Error("empty name: expected error")
	}
	if err := s.Register(Template{Name: "x"}); err == nil {
		t.Error("no body: expected error")
	}
	if err := s.Register(Template{Name: "bad", Text: "{{.Open"}); err == nil {
		t.Error("parse error: expected error")
	}
	if _, err := s.Render("missing", nil); err == nil {
		t.Error("unknown template: expected error")
	}

	if err := s.Register(Template{Name: "strict", Text: "{{.Absent}}"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Render("strict", map[string]string{}); err == nil {
		t.Error("missing key: expected error")
	}
}
