package reports

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

const (
	settingNotificationEmail = "notification_email"
	settingSMTPHost          = "smtp_host"
	settingSMTPPort          = "smtp_port"
	settingSMTPUser          = "smtp_user"
	settingSMTPPass          = "smtp_pass"
	settingSendOnError       = "send_on_error"
	settingSendOnCompletion  = "send_on_completion"
)

// EmailSettings configures download notifications.
type EmailSettings struct {
	NotificationEmail string
	SMTPHost          string
	SMTPPort          string
	SMTPUser          string
	SMTPPass          string
	SendOnError       bool
	SendOnCompletion  bool
}

func DefaultEmailSettings() EmailSettings {
	return EmailSettings{SMTPPort: "587"}
}

func (s EmailSettings) Validate() error {
	if s.SMTPPort != "" {
		port, err := strconv.Atoi(s.SMTPPort)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: smtp_port must be a port number", ErrInvalidInput)
		}
	}
	if s.NotificationEmail != "" && !strings.Contains(s.NotificationEmail, "@") {
		return fmt.Errorf("%w: notification_email is not an email address", ErrInvalidInput)
	}
	return nil
}

func (s EmailSettings) toRows() map[string]string {
	return map[string]string{
		settingNotificationEmail: s.NotificationEmail,
		settingSMTPHost:          s.SMTPHost,
		settingSMTPPort:          s.SMTPPort,
		settingSMTPUser:          s.SMTPUser,
		settingSMTPPass:          s.SMTPPass,
		settingSendOnError:       strconv.FormatBool(s.SendOnError),
		settingSendOnCompletion:  strconv.FormatBool(s.SendOnCompletion),
	}
}

// emailSettingsFromRows overlays stored rows on the defaults. Unknown keys are ignored.
func emailSettingsFromRows(kv map[string]string) EmailSettings {
	s := DefaultEmailSettings()
	if v, ok := kv[settingNotificationEmail]; ok {
		s.NotificationEmail = v
	}
	if v, ok := kv[settingSMTPHost]; ok {
		s.SMTPHost = v
	}
	if v, ok := kv[settingSMTPPort]; ok && v != "" {
		s.SMTPPort = v
	}
	if v, ok := kv[settingSMTPUser]; ok {
		s.SMTPUser = v
	}
	if v, ok := kv[settingSMTPPass]; ok {
		s.SMTPPass = v
	}
	s.SendOnError, _ = strconv.ParseBool(kv[settingSendOnError])
	s.SendOnCompletion, _ = strconv.ParseBool(kv[settingSendOnCompletion])
	return s
}

// Notifier announces finished downloads.
type Notifier interface {
	DownloadFinished(rec DownloadRecord, settings EmailSettings)
}

// LogNotifier writes the notification it would send to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) DownloadFinished(rec DownloadRecord, settings EmailSettings) {
	if settings.NotificationEmail == "" {
		return
	}
	withErrors := rec.ErrorCount > 0
	if withErrors && !settings.SendOnError {
		return
	}
	if !withErrors && !settings.SendOnCompletion {
		return
	}
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify to=%s via=%s:%s download=%d status=%s files=%d errors=%d",
		settings.NotificationEmail, settings.SMTPHost, settings.SMTPPort,
		rec.ID, rec.Status, rec.FileCount, rec.ErrorCount)
}
