package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"medboard-server-go/internal/domain/security/model"
	"medboard-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a lockout store on top of an already migrated gorm handle.
func NewSQLite(db *gorm.DB, _ Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Put(ctx context.Context, rec model.LockoutRecord) error {
	if rec.Email == "" {
		return fmt.Errorf("email required")
	}
	row := storage.LockoutRow{
		Email:               rec.Email,
		FailedAttempts:      rec.FailedAttempts,
		ConsecutiveLockouts: rec.ConsecutiveLockouts,
		LastAttemptAt:       rec.LastAttempt,
		LockedUntil:         rec.LockedUntil,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", rec.Email).
			Delete(&storage.LockoutRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, email string) (model.LockoutRecord, error) {
	var row storage.LockoutRow
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.LockoutRecord{}, ErrNotFound
	}
	if err != nil {
		return model.LockoutRecord{}, err
	}
	return recordFromRow(row), nil
}

func (s *sqliteStore) Delete(ctx context.Context, email string) error {
	return s.db.WithContext(ctx).
		Where("email = ?", email).
		Delete(&storage.LockoutRow{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]model.LockoutRecord, error) {
	var rows []storage.LockoutRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	recs := make([]model.LockoutRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, recordFromRow(row))
	}
	return recs, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context, age time.Duration) (int, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, rec := range recs {
		if cleanupEligible(rec, now, age) {
			if err := s.Delete(ctx, rec.Email); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func recordFromRow(row storage.LockoutRow) model.LockoutRecord {
	return model.LockoutRecord{
		Email:               row.Email,
		FailedAttempts:      row.FailedAttempts,
		ConsecutiveLockouts: row.ConsecutiveLockouts,
		LastAttempt:         row.LastAttemptAt,
		LockedUntil:         row.LockedUntil,
	}
}
