package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/testutil"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "Ushauri",
		FrontendBaseURL:  "https://ushauri.test",
		DefaultFromEmail: mail.Address{Name: "Ushauri", Address: "noreply@ushauri.test"},
	}
}

func welcomeMessage(to string) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "Jane Doe", Address: to}},
		Subject:      "Your account",
		TemplateName: "welcome",
		TemplateData: struct{ Name, Email, Role, Password string }{"Jane Doe", to, "mentor", "T3mp!pass"},
	}
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	logger := new(testutil.Logger)
	svc := NewConsoleServiceMock(testConfig(), logger)

	svc.SendMessages(
		welcomeMessage("jane@jkkn.ac.in"),
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hi"},
		&core.EmailMessage{To: []mail.Address{{Address: "ravi@jkkn.ac.in"}}, Subject: "empty"},
	)

	if len(SentMessages) != 1 {
		t.Fatalf("SentMessages = %d, want 1", len(SentMessages))
	}
	if got := SentMessages[0].TextContent; !strings.Contains(got, "Temporary password: T3mp!pass") {
		t.Errorf("sent text content = %q, want the temporary password", got)
	}
	if len(logger.Messages) != 0 {
		t.Errorf("logged %v, want nothing", logger.Messages)
	}
}

func TestConsoleService_format(t *testing.T) {
	svc := consoleService{defaultFromEmail: testConfig().DefaultFromEmail, subjPrefix: "[Ushauri] "}
	msg := welcomeMessage("jane@jkkn.ac.in")
	if err := msg.Render("Ushauri", "https://ushauri.test"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	body, err := svc.format(*msg)
	if err != nil {
		t.Fatalf("format() error = %v", err)
	}
	for _, want := range []string{
		"From: \"Ushauri\" <noreply@ushauri.test>",
		"Subject: [Ushauri] Your account",
		"To: \"Jane Doe\" <jane@jkkn.ac.in>",
		"Content-Type: text/plain",
		"Content-Type: text/html",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("format() = %q, want it to contain %q", body, want)
		}
	}
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(testConfig(), new(testutil.Logger)).(*sendgridService)
	msg := welcomeMessage("jane@jkkn.ac.in")
	msg.Cc = []mail.Address{{Address: "hod@jkkn.ac.in"}}
	if err := msg.Render(svc.appName, svc.frontendBaseURL); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	m := svc.prepare(*msg)
	if m.From.Address != "noreply@ushauri.test" {
		t.Errorf("prepare() from = %s, want noreply@ushauri.test", m.From.Address)
	}
	if len(m.Personalizations) != 1 {
		t.Fatalf("prepare() personalizations = %d, want 1", len(m.Personalizations))
	}
	p := m.Personalizations[0]
	if p.Subject != "[Ushauri] Your account" || len(p.To) != 1 || len(p.CC) != 1 {
		t.Errorf("prepare() personalization = %+v, want 1 to, 1 cc & the prefixed subject", p)
	}
	if len(m.Content) != 2 || m.Content[0].Type != "text/plain" || m.Content[1].Type != "text/html" {
		t.Errorf("prepare() content = %+v, want text & html", m.Content)
	}
}
