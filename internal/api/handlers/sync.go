package handlers

import (
	"context"
	"net/http"
	"strconv"

	"erpsync/internal/events"
	"erpsync/internal/syncer"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Syncer dispatches one inbound message.
type Syncer interface {
	Sync(ctx context.Context, id uint) (*syncer.SyncResult, error)
}

type SyncHandler struct {
	syncer    Syncer
	publisher events.Publisher
	topic     string
	logger    *zap.Logger
}

// NewSyncHandler enqueues async requests on syncTopic through publisher.
func NewSyncHandler(s Syncer, publisher events.Publisher, syncTopic string, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncer:    s,
		publisher: publisher,
		topic:     syncTopic,
		logger:    logger,
	}
}

// SyncEntry handles POST /sync?entryId=N.
func (h *SyncHandler) SyncEntry(c *gin.Context) {
	h.sync(c, c.Query("entryId"), "entryId")
}

// SyncMessage handles POST /inbound-messages/:id/sync.
func (h *SyncHandler) SyncMessage(c *gin.Context) {
	h.sync(c, c.Param("id"), "id")
}

func (h *SyncHandler) sync(c *gin.Context, raw, name string) {
	id, err := parseID(raw, name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.enqueue(c, id)
		return
	}

	result, err := h.syncer.Sync(c.Request.Context(), id)
	if err != nil {
		respondSyncError(c, h.logger, result, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (h *SyncHandler) enqueue(c *gin.Context, id uint) {
	if err := h.publisher.Publish(c.Request.Context(), h.topic, events.MessageKey(id), events.SyncRequest{MessageID: id}); err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("sync request enqueued", zap.Uint("message_id", id), zap.String("topic", h.topic))
	c.JSON(http.StatusAccepted, gin.H{"success": true, "messageId": id, "message": "Sync request queued"})
}

// respondSyncError reports a failed dispatch. When the message was claimed,
// its recorded state is returned next to the error.
func respondSyncError(c *gin.Context, logger *zap.Logger, result *syncer.SyncResult, err error) {
	if result == nil {
		respondError(c, logger, err)
		return
	}
	respondErrorWith(c, logger, err, gin.H{"data": result})
}
