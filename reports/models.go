package reports

import "time"

type DownloadStatus string

const (
	StatusPending             DownloadStatus = "pending"
	StatusInProgress          DownloadStatus = "in_progress"
	StatusCompleted           DownloadStatus = "completed"
	StatusCompletedWithErrors DownloadStatus = "completed_with_errors"
)

// IsTerminal reports whether a record in status s can no longer change.
func (s DownloadStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors:
		return true
	}
	return false
}

type DownloadRecord struct {
	ID          uint    `gorm:"primaryKey"`
	UserID      string  `gorm:"index;size:128"`
	Year        string  `gorm:"index;size:4"`
	Month       *string `gorm:"size:16"`
	FacilityID  *string `gorm:"index;size:16"`
	FileCount   int
	ErrorCount  int
	Status      DownloadStatus `gorm:"index;size:32"`
	CreatedAt   time.Time      `gorm:"index"`
	CompletedAt *time.Time
}

func (DownloadRecord) TableName() string { return "download_history" }

type RegexPattern struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:255"`
	Pattern     string `gorm:"type:text"`
	Description string `gorm:"type:text"`
	IsActive    bool   `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (RegexPattern) TableName() string { return "regex_patterns" }

// ErrorLogEntry is append-only. DownloadID is nil for errors not tied to a download.
type ErrorLogEntry struct {
	ID           uint      `gorm:"primaryKey"`
	DownloadID   *uint     `gorm:"index"`
	ErrorMessage string    `gorm:"type:text"`
	StackTrace   string    `gorm:"type:text"`
	BrowserInfo  string    `gorm:"type:text"`
	PageURL      string    `gorm:"size:2048"`
	UserID       string    `gorm:"index;size:128"`
	CreatedAt    time.Time `gorm:"index"`
}

func (ErrorLogEntry) TableName() string { return "error_logs" }

// Setting is one key/value row of the settings table.
type Setting struct {
	Name      string `gorm:"column:setting_name;primaryKey;size:64"`
	Value     string `gorm:"column:setting_value;type:text"`
	UpdatedAt time.Time
}

func (Setting) TableName() string { return "settings" }
