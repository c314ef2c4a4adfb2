// Package processors handles the messages the worker consumes.
package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"erpsync/internal/apperr"
	"erpsync/internal/events"
	"erpsync/internal/syncer"

	"go.uber.org/zap"
)

// Syncer dispatches one inbound message.
type Syncer interface {
	Sync(ctx context.Context, id uint) (*syncer.SyncResult, error)
}

// SyncProcessor runs the dispatcher for each sync request. Dispatch
// failures are recorded on the message itself, so they are logged here
// rather than returned.
type SyncProcessor struct {
	syncer Syncer
	logger *zap.Logger
}

func NewSyncProcessor(s Syncer, logger *zap.Logger) *SyncProcessor {
	return &SyncProcessor{
		syncer: s,
		logger: logger.With(zap.String("component", "sync_processor")),
	}
}

// Process decodes a SyncRequest and dispatches it. Only malformed requests
// and store failures are returned.
func (p *SyncProcessor) Process(ctx context.Context, value []byte) error {
	var req events.SyncRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return fmt.Errorf("decode sync request: %w", err)
	}
	if req.MessageID == 0 {
		return fmt.Errorf("sync request has no message_id")
	}

	log := p.logger.With(zap.Uint("message_id", req.MessageID))
	result, err := p.syncer.Sync(ctx, req.MessageID)
	switch {
	case err == nil:
		log.Info("sync request processed", zap.String("platform_id", result.PlatformID), zap.String("counter", result.Counter))
		return nil
	case result != nil:
		// The attempt ran and the message is now in error.
		log.Warn("sync request failed", zap.String("counter", result.Counter), zap.Error(err))
		return nil
	case apperr.Is[*apperr.ConflictError](err),
		apperr.Is[*apperr.NotFoundError](err),
		apperr.Is[*apperr.InvalidPayloadError](err),
		apperr.Is[*apperr.UnknownEntityCodeError](err),
		apperr.Is[*apperr.ValidationError](err):
		log.Warn("sync request rejected", zap.Error(err))
		return nil
	default:
		return err
	}
}
