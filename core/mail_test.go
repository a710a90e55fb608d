package core

import (
	"strings"
	"testing"
)

func TestEmailMessage_Render(t *testing.T) {
	data := struct{ Name, Email, Role, Password string }{"Jane Doe", "jane@jkkn.ac.in", "mentor", "T3mp!pass"}

	msg := &EmailMessage{TemplateName: "welcome", TemplateData: data}
	if err := msg.Render("Ushauri", "https://ushauri.test"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for _, want := range []string{"Hello Jane Doe", "Temporary password: T3mp!pass", "https://ushauri.test/login", "The Ushauri team"} {
		if !strings.Contains(msg.TextContent, want) {
			t.Errorf("Render() text content = %q, want it to contain %q", msg.TextContent, want)
		}
	}
	if !strings.Contains(msg.HTMLContent, "<code>T3mp!pass</code>") {
		t.Errorf("Render() html content = %q, want the password", msg.HTMLContent)
	}
	if !msg.HasContent() {
		t.Error("HasContent() = false, want true")
	}

	plain := &EmailMessage{BodyStr: "hi"}
	if err := plain.Render("Ushauri", ""); err != nil || plain.TextContent != "hi" || plain.HTMLContent != "" {
		t.Errorf("Render() = (%q, %q, %v), want the plain body", plain.TextContent, plain.HTMLContent, err)
	}

	unknown := &EmailMessage{TemplateName: "nope"}
	if err := unknown.Render("Ushauri", ""); err != nil || unknown.HasContent() {
		t.Errorf("Render() = (%v, %v), want no content for an unknown template", unknown.HasContent(), err)
	}
}
