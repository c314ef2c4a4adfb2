package store

import (
	"context"
	"fmt"
	"time"

	"erpsync/internal/apperr"
	"erpsync/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateInbound writes a message and its payload in one transaction.
func (s *Store) CreateInbound(ctx context.Context, msg *models.InboundMessage, body []byte) (*models.MessagePayload, error) {
	if msg.Counter == "" {
		msg.Counter = "0"
	}
	if msg.Status == "" {
		msg.Status = models.StatusPending
	}
	if msg.ERPCode == "" {
		msg.ERPCode = models.DefaultERPCode
	}

	payload := &models.MessagePayload{Body: datatypes.JSON(body)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create inbound message: %w", err)
		}
		payload.MessageID = msg.ID
		if err := tx.Create(payload).Error; err != nil {
			return fmt.Errorf("failed to create payload: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) GetInbound(ctx context.Context, id uint) (*models.InboundMessage, error) {
	var msg models.InboundMessage
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "inbound message", id)
	}
	return &msg, nil
}

func (s *Store) GetPayload(ctx context.Context, messageID uint) (*models.MessagePayload, error) {
	var payload models.MessagePayload
	if err := s.db.WithContext(ctx).First(&payload, "message_id = ?", messageID).Error; err != nil {
		return nil, notFound(err, "payload for message", messageID)
	}
	return &payload, nil
}

func (s *Store) ListInbound(ctx context.Context, f Filter) ([]models.InboundMessage, models.Pagination, error) {
	order, err := orderClause(f, inboundSortColumns)
	if err != nil {
		return nil, models.Pagination{}, err
	}

	query := applyFilter(s.db.WithContext(ctx).Model(&models.InboundMessage{}), f)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to count inbound messages: %w", err)
	}

	page := models.NewPagination(f.Page, f.Limit, total)
	var messages []models.InboundMessage
	if err := query.Order(order).Offset(page.Offset()).Limit(page.Limit).Find(&messages).Error; err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to fetch inbound messages: %w", err)
	}
	return messages, page, nil
}

// ClaimInbound moves a message from pending or error into processing. A
// processing row last touched before staleBefore is treated as abandoned and
// may be claimed again. It reports false when another dispatch holds the row.
func (s *Store) ClaimInbound(ctx context.Context, id uint, staleBefore time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.InboundMessage{}).
		Where("id = ? AND (status IN ? OR (status = ? AND updated_at < ?))",
			id, defaultStatuses, models.StatusProcessing, staleBefore).
		Updates(map[string]interface{}{
			"status":     models.StatusProcessing,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim message %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FinishInbound persists the outcome of a dispatch held by ClaimInbound.
func (s *Store) FinishInbound(ctx context.Context, msg *models.InboundMessage) error {
	msg.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).Model(msg).
		Where("status = ?", models.StatusProcessing).
		Select("status", "counter", "platform_id", "updated_by", "updated_at").
		Updates(msg)
	if res.Error != nil {
		return fmt.Errorf("failed to update message %d: %w", msg.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &apperr.ConflictError{MessageID: msg.ID, Reason: "claim lost before the result was written"}
	}
	return nil
}

// SetInboundStatus overrides a message status by hand.
func (s *Store) SetInboundStatus(ctx context.Context, id uint, status models.MessageStatus) (*models.InboundMessage, error) {
	switch status {
	case models.StatusPending, models.StatusError, models.StatusSuccess:
	default:
		return nil, apperr.Validation("status", "must be one of pending, error, success")
	}
	msg, err := s.GetInbound(ctx, id)
	if err != nil {
		return nil, err
	}
	msg.Status = status
	if err := s.db.WithContext(ctx).Model(msg).Select("status", "updated_at").Updates(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to update message %d: %w", id, err)
	}
	return msg, nil
}

// DeleteInbound removes a message together with its payload.
func (s *Store) DeleteInbound(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.MessagePayload{}).Error; err != nil {
			return fmt.Errorf("failed to delete payload: %w", err)
		}
		res := tx.Delete(&models.InboundMessage{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete inbound message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("inbound message", id)
		}
		return nil
	})
}
