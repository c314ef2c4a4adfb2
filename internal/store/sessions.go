package store

import (
	"context"
	"fmt"
	"time"

	"erpsync/internal/models"

	"gorm.io/gorm/clause"
)

// SaveSession upserts the credential for a shop.
func (s *Store) SaveSession(ctx context.Context, session *models.ShopSession) error {
	if session.InstalledAt.IsZero() {
		session.InstalledAt = time.Now()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shop"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "scope", "installed_at"}),
	}).Create(session).Error
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", session.Shop, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, shop string) (*models.ShopSession, error) {
	var session models.ShopSession
	if err := s.db.WithContext(ctx).First(&session, "shop = ?", shop).Error; err != nil {
		return nil, notFound(err, "shop session", shop)
	}
	return &session, nil
}

// DeleteSessions drops every credential held for a shop.
func (s *Store) DeleteSessions(ctx context.Context, shop string) (int64, error) {
	res := s.db.WithContext(ctx).Where("shop = ?", shop).Delete(&models.ShopSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete sessions for %s: %w", shop, res.Error)
	}
	return res.RowsAffected, nil
}
