package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"medboard-server-go/internal/domain/session/model"
	"medboard-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a session store on top of an already migrated gorm handle.
func NewSQLite(db *gorm.DB, _ Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Put(ctx context.Context, rec model.Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session id required")
	}
	row := rowFromRecord(rec)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", rec.SessionID).
			Delete(&storage.SessionRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, sessionID string) (model.Record, error) {
	var row storage.SessionRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Record{}, ErrNotFound
	}
	if err != nil {
		return model.Record{}, err
	}
	return recordFromRow(row), nil
}

func (s *sqliteStore) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&storage.SessionRow{}).Error
}

func (s *sqliteStore) ListByUser(ctx context.Context, userID string) ([]model.Record, error) {
	var rows []storage.SessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]model.Record, error) {
	var rows []storage.SessionRow
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND expires_at > ?", true, time.Now()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) ([]model.Record, error) {
	var rows []storage.SessionRow
	now := time.Now()
	err := s.db.WithContext(ctx).
		Where("is_active = ? OR expires_at <= ?", false, now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.SessionID)
	}
	if err := s.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Delete(&storage.SessionRow{}).Error; err != nil {
		return nil, err
	}
	return recordsFromRows(rows), nil
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total, live int64
	if err := s.db.WithContext(ctx).Model(&storage.SessionRow{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&storage.SessionRow{}).
		Where("is_active = ? AND expires_at > ?", true, time.Now()).
		Count(&live).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "sqlite",
		"total": total,
		"live":  live,
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func rowFromRecord(rec model.Record) storage.SessionRow {
	return storage.SessionRow{
		SessionID:    rec.SessionID,
		UserID:       rec.UserID,
		UserEmail:    rec.UserEmail,
		UserRole:     rec.UserRole,
		IPAddress:    rec.IPAddress,
		UserAgent:    rec.UserAgent,
		CreatedAt:    rec.CreatedAt,
		LastActivity: rec.LastActivity,
		ExpiresAt:    rec.ExpiresAt,
		IsActive:     rec.IsActive,
	}
}

func recordFromRow(row storage.SessionRow) model.Record {
	return model.Record{
		SessionID:    row.SessionID,
		UserID:       row.UserID,
		UserEmail:    row.UserEmail,
		UserRole:     row.UserRole,
		IPAddress:    row.IPAddress,
		UserAgent:    row.UserAgent,
		CreatedAt:    row.CreatedAt,
		LastActivity: row.LastActivity,
		ExpiresAt:    row.ExpiresAt,
		IsActive:     row.IsActive,
	}
}

func recordsFromRows(rows []storage.SessionRow) []model.Record {
	recs := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, recordFromRow(row))
	}
	return recs
}
