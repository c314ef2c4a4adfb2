package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"erpsync/internal/api/middleware"
	"erpsync/internal/apperr"
	"erpsync/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes err with the status its type maps to. Upstream
// validation failures carry the platform's messages in "errors".
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	respondErrorWith(c, logger, err, nil)
}

func respondErrorWith(c *gin.Context, logger *zap.Logger, err error, extra gin.H) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"success": false, "error": err.Error()}

	var upstream *apperr.UpstreamValidationError
	if errors.As(err, &upstream) {
		body["errors"] = upstream.Messages()
	}
	var invalid *apperr.ValidationError
	if errors.As(err, &invalid) && invalid.Field != "" {
		body["field"] = invalid.Field
	}
	for k, v := range extra {
		body[k] = v
	}

	log := middleware.RequestLogger(c, logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func parseID(raw, name string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperr.Validation(name, "is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return uint(id), nil
}

// parseFilter reads the shared listing query: updateType, shopifyId, shop,
// entityCode, status, startDate, endDate, sortBy, sortOrder, page and limit.
func parseFilter(c *gin.Context) (store.Filter, error) {
	f := store.Filter{
		Shop:       c.Query("shop"),
		EntityCode: c.Query("entityCode"),
		UpdateType: c.Query("updateType"),
		PlatformID: c.Query("shopifyId"),
		SortBy:     c.Query("sortBy"),
		SortDesc:   !strings.EqualFold(c.Query("sortOrder"), "asc"),
	}

	var err error
	if f.Statuses, f.AllStatuses, err = store.ParseStatuses(c.Query("status")); err != nil {
		return f, err
	}
	if f.Page, err = queryInt(c, "page", 1); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit", 0); err != nil {
		return f, err
	}
	if f.StartDate, err = queryTime(c, "startDate", false); err != nil {
		return f, err
	}
	if f.EndDate, err = queryTime(c, "endDate", true); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(key, "must be a non-negative integer")
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func queryTime(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Validation(key, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
