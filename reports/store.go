package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists download records, patterns, error logs and settings in SQLite.
type Store struct {
	db *gorm.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One connection: SQLite permits a single writer at a time.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&DownloadRecord{}, &RegexPattern{}, &ErrorLogEntry{}, &Setting{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s := &Store{db: db}
	if err := s.seedPatterns(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	s.db = nil
	return err
}

func (s *Store) seedPatterns() error {
	var n int64
	if err := s.db.Model(&RegexPattern{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	defaults := DefaultPatterns()
	return s.db.Create(&defaults).Error
}

func (s *Store) CreateDownload(ctx context.Context, rec *DownloadRecord) error {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) GetDownload(ctx context.Context, id uint) (*DownloadRecord, error) {
	var rec DownloadRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: download %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListActiveDownloads returns records that have not reached a terminal status, oldest first.
func (s *Store) ListActiveDownloads(ctx context.Context) ([]DownloadRecord, error) {
	var recs []DownloadRecord
	err := s.db.WithContext(ctx).
		Where("status IN ?", []DownloadStatus{StatusPending, StatusInProgress}).
		Order("id asc").
		Find(&recs).Error
	return recs, err
}

// AdvanceDownload adds files and errors to a running download and moves it to
// in_progress. When finish is set the record is completed instead, and its
// final status is derived from the error count.
func (s *Store) AdvanceDownload(ctx context.Context, id uint, addFiles, addErrors int, finish bool) (*DownloadRecord, error) {
	var out DownloadRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec DownloadRecord
		err := tx.First(&rec, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: download %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if rec.Status.IsTerminal() {
			return fmt.Errorf("%w: download %d is %s", ErrTerminal, id, rec.Status)
		}

		updates := map[string]any{
			"file_count":  rec.FileCount + addFiles,
			"error_count": rec.ErrorCount + addErrors,
			"status":      StatusInProgress,
		}
		if finish {
			now := time.Now().UTC()
			status := StatusCompleted
			if rec.ErrorCount+addErrors > 0 {
				status = StatusCompletedWithErrors
			}
			updates["status"] = status
			updates["completed_at"] = &now
		}
		if err := tx.Model(&DownloadRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&out, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) ListPatterns(ctx context.Context, activeOnly bool) ([]RegexPattern, error) {
	q := s.db.WithContext(ctx).Order("id asc")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []RegexPattern
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) CreatePattern(ctx context.Context, p *RegexPattern) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) CreateErrorLog(ctx context.Context, e *ErrorLogEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

// ErrorLogFilter narrows ListErrorLogs. Zero values match everything.
type ErrorLogFilter struct {
	DownloadID *uint
	// Query is matched case-insensitively against the message and user id.
	Query string
	Limit int
}

func (s *Store) ListErrorLogs(ctx context.Context, f ErrorLogFilter) ([]ErrorLogEntry, error) {
	q := s.db.WithContext(ctx).Order("created_at desc, id desc")
	if f.DownloadID != nil {
		q = q.Where("download_id = ?", *f.DownloadID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(error_message) LIKE ? OR LOWER(user_id) LIKE ?", like, like)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []ErrorLogEntry
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) LoadSettings(ctx context.Context) (map[string]string, error) {
	var rows []Setting
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}

// SaveSettings upserts every key in one transaction.
func (s *Store) SaveSettings(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]Setting, 0, len(kv))
	for k, v := range kv {
		rows = append(rows, Setting{Name: k, Value: v, UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
		}).Create(&rows).Error
	})
}
