package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
)

// Store defines the interface for session persistence
type Store interface {
	// Load returns the session for a thread, or nil if none exists
	Load(ctx context.Context, threadID string) (*Session, error)

	// Save persists the full session state for a thread
	Save(ctx context.Context, sess *Session) error
}

type sessionRecord struct {
	ThreadID  string `gorm:"primaryKey;column:thread_id"`
	State     string `gorm:"column:state"`
	UpdatedAt time.Time
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// GormStore implements Store on a gorm database handle
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a session store, migrating its table
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionLoad, "failed to migrate session table", err)
	}
	return &GormStore{db: db}, nil
}

// Load returns the session for a thread, or nil if none exists
func (s *GormStore) Load(ctx context.Context, threadID string) (*Session, error) {
	var record sessionRecord
	err := s.db.WithContext(ctx).First(&record, "thread_id = ?", threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionLoad, "failed to load session", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(record.State), &sess); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionLoad, "failed to decode session state", err)
	}

	return &sess, nil
}

// Save persists the full session state for a thread
func (s *GormStore) Save(ctx context.Context, sess *Session) error {
	state, err := json.Marshal(sess)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeSessionSave, "failed to encode session state", err)
	}

	record := sessionRecord{
		ThreadID:  sess.ThreadID,
		State:     string(state),
		UpdatedAt: time.Now(),
	}

	err = s.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		return apperrors.New(apperrors.ErrCodeSessionSave, "failed to save session", err)
	}

	return nil
}
