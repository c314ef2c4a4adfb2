package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"erpsync/internal/apperr"
	"erpsync/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateOutbound(ctx context.Context, msg *models.OutboundMessage) error {
	if msg.Count == "" {
		msg.Count = "0"
	}
	if msg.Status == "" {
		msg.Status = models.StatusPending
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create outbound message: %w", err)
	}
	return nil
}

func (s *Store) GetOutbound(ctx context.Context, id uint) (*models.OutboundMessage, error) {
	var msg models.OutboundMessage
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "outbound message", id)
	}
	return &msg, nil
}

func (s *Store) ListOutbound(ctx context.Context, f Filter) ([]models.OutboundMessage, models.Pagination, error) {
	return s.listOutbound(s.db.WithContext(ctx), f)
}

func (s *Store) listOutbound(db *gorm.DB, f Filter) ([]models.OutboundMessage, models.Pagination, error) {
	order, err := orderClause(f, outboundSortColumns)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	query := applyFilter(db.Model(&models.OutboundMessage{}), f)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to count outbound messages: %w", err)
	}

	page := models.NewPagination(f.Page, f.Limit, total)
	var messages []models.OutboundMessage
	if err := query.Order(order).Offset(page.Offset()).Limit(page.Limit).Find(&messages).Error; err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to fetch outbound messages: %w", err)
	}
	return messages, page, nil
}

// PullOutbound returns one page of outbound messages and marks exactly the
// returned rows as transferred.
func (s *Store) PullOutbound(ctx context.Context, f Filter) ([]models.OutboundMessage, models.Pagination, error) {
	var (
		messages []models.OutboundMessage
		page     models.Pagination
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		messages, page, err = s.listOutbound(tx, f)
		if err != nil || len(messages) == 0 {
			return err
		}

		ids := make([]uint, len(messages))
		for i := range messages {
			ids[i] = messages[i].ID
		}
		now := time.Now()
		if err := tx.Model(&models.OutboundMessage{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": models.StatusTransferred, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to mark messages transferred: %w", err)
		}
		for i := range messages {
			messages[i].Status = models.StatusTransferred
			messages[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, models.Pagination{}, err
	}
	return messages, page, nil
}

// AckOutbound records the ERP's verdict on a pulled message and bumps its
// attempt count.
func (s *Store) AckOutbound(ctx context.Context, id uint, erpID string, status models.MessageStatus) (*models.OutboundMessage, error) {
	if status != models.StatusSuccess && status != models.StatusError {
		return nil, apperr.Validation("status", "must be success or error")
	}

	var msg models.OutboundMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&msg, "id = ?", id).Error; err != nil {
			return notFound(err, "outbound message", id)
		}
		msg.Status = status
		if erpID != "" {
			msg.ERPID = &erpID
		}
		msg.Count = strconv.Itoa(msg.Attempts() + 1)
		return tx.Model(&msg).Select("status", "erp_id", "count", "updated_at").Updates(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
