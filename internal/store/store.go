// Package store persists inbound/outbound messages, their payloads and shop
// sessions with gorm.
package store

import (
	"errors"
	"strings"
	"time"

	"erpsync/internal/apperr"
	"erpsync/internal/models"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Filter narrows a message listing. Zero values mean "no filter", except
// Statuses: an empty list restricts to pending and error unless AllStatuses
// is set.
type Filter struct {
	Shop        string
	EntityCode  string
	UpdateType  string
	PlatformID  string
	Statuses    []models.MessageStatus
	AllStatuses bool
	StartDate   *time.Time
	EndDate     *time.Time
	SortBy      string
	SortDesc    bool
	Page        int
	Limit       int
}

var defaultStatuses = []models.MessageStatus{models.StatusPending, models.StatusError}

var commonSortColumns = map[string]string{
	"id":         "id",
	"shop":       "shop",
	"entityCode": "entity_code",
	"updateType": "update_type",
	"shopifyId":  "platform_id",
	"variantId":  "variant_id",
	"status":     "status",
	"erpCode":    "erp_code",
	"updatedBy":  "updated_by",
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
}

var inboundSortColumns = withColumns(commonSortColumns, map[string]string{
	"targetId": "target_id",
	"counter":  "counter",
})

var outboundSortColumns = withColumns(commonSortColumns, map[string]string{
	"erpId": "erp_id",
	"count": "count",
})

func withColumns(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// orderClause resolves an API sort key (camelCase or column name) to an
// ORDER BY clause. The default is created_at desc.
func orderClause(f Filter, columns map[string]string) (string, error) {
	if f.SortBy == "" {
		return "created_at desc, id desc", nil
	}
	column, ok := columns[f.SortBy]
	if !ok {
		for _, c := range columns {
			if c == f.SortBy {
				column, ok = c, true
				break
			}
		}
	}
	if !ok {
		return "", apperr.Validation("sortBy", "cannot sort by %q", f.SortBy)
	}
	dir := "asc"
	if f.SortDesc {
		dir = "desc"
	}
	return column + " " + dir + ", id " + dir, nil
}

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.Shop != "" {
		q = q.Where("shop = ?", f.Shop)
	}
	if f.EntityCode != "" {
		q = q.Where("entity_code = ?", f.EntityCode)
	}
	if f.UpdateType != "" {
		q = q.Where("update_type = ?", f.UpdateType)
	}
	if f.PlatformID != "" {
		q = q.Where("platform_id = ?", f.PlatformID)
	}
	if !f.AllStatuses {
		statuses := f.Statuses
		if len(statuses) == 0 {
			statuses = defaultStatuses
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.StartDate != nil {
		q = q.Where("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("created_at <= ?", *f.EndDate)
	}
	return q
}

// ParseStatuses splits a comma separated status list. "all" disables the
// default status filter.
func ParseStatuses(raw string) ([]models.MessageStatus, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, false, nil
	}
	var out []models.MessageStatus
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch models.MessageStatus(part) {
		case models.StatusPending, models.StatusError, models.StatusSuccess,
			models.StatusProcessing, models.StatusTransferred:
			out = append(out, models.MessageStatus(part))
		case "all":
			return nil, true, nil
		case "":
		default:
			return nil, false, apperr.Validation("status", "unknown status %q", part)
		}
	}
	return out, false, nil
}

func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource, id)
	}
	return err
}
