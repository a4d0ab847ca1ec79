package reports

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestEmailSettingsFromRows(t *testing.T) {
	s := emailSettingsFromRows(map[string]string{
		"smtp_host":          "smtp.example.com",
		"smtp_port":          "",
		"send_on_error":      "true",
		"send_on_completion": "not-a-bool",
		"legacy_key":         "ignored",
	})
	if s.SMTPHost != "smtp.example.com" || s.SMTPPort != "587" || !s.SendOnError || s.SendOnCompletion {
		t.Fatalf("unexpected settings %+v", s)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: log.New(&buf, "", 0)}
	ok := DownloadRecord{ID: 1, Status: StatusCompleted, FileCount: 360}
	withErrors := DownloadRecord{ID: 2, Status: StatusCompletedWithErrors, FileCount: 300, ErrorCount: 3}

	n.DownloadFinished(ok, EmailSettings{SendOnCompletion: true})
	if buf.Len() != 0 {
		t.Fatalf("expected no notification without address, got %q", buf.String())
	}

	settings := EmailSettings{NotificationEmail: "ops@example.com", SMTPHost: "smtp", SMTPPort: "587", SendOnCompletion: true}
	n.DownloadFinished(ok, settings)
	n.DownloadFinished(withErrors, settings)
	out := buf.String()
	if !strings.Contains(out, "download=1") || strings.Contains(out, "download=2") {
		t.Fatalf("expected only the clean completion to notify, got %q", out)
	}

	buf.Reset()
	settings.SendOnError = true
	n.DownloadFinished(withErrors, settings)
	if !strings.Contains(buf.String(), "download=2 status=completed_with_errors") {
		t.Fatalf("expected error notification, got %q", buf.String())
	}
}
