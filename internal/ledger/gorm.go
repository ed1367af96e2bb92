package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/auth_service/internal/models"
)

// GormLedger keeps records in the refresh_tokens table.
type GormLedger struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{DB: db, Now: time.Now}
}

func (l *GormLedger) Create(ctx context.Context, rec Record) (Record, error) {
	row := models.RefreshToken{
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt.UTC(),
	}
	if err := l.DB.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		return Record{}, fmt.Errorf("%w: create refresh token: %w", ErrPersistence, err)
	}
	rec.ID = strconv.FormatUint(uint64(row.ID), 10)
	return rec, nil
}

func (l *GormLedger) Delete(ctx context.Context, id string) (bool, error) {
	pk, ok := parseID(id)
	if !ok {
		return false, nil
	}
	res := l.DB.WithContext(ctx).Delete(&models.RefreshToken{}, pk)
	if res.Error != nil {
		return false, fmt.Errorf("%w: delete refresh token: %w", ErrPersistence, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (l *GormLedger) Find(ctx context.Context, id string) (Record, error) {
	pk, ok := parseID(id)
	if !ok {
		return Record{}, ErrNotFound
	}

	var row models.RefreshToken
	if err := l.DB.WithContext(ctx).First(&row, pk).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: find refresh token: %w", ErrPersistence, err)
	}

	rec := Record{ID: id, UserID: row.UserID, ExpiresAt: row.ExpiresAt}
	if rec.expired(l.Now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (l *GormLedger) PurgeExpired(ctx context.Context) (int64, error) {
	res := l.DB.WithContext(ctx).
		Where("expires_at <= ?", l.Now().UTC()).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: purge refresh tokens: %w", ErrPersistence, res.Error)
	}
	return res.RowsAffected, nil
}

func parseID(id string) (uint64, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
