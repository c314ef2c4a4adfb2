package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

type EntityCode string

const (
	EntityProduct         EntityCode = "product"
	EntityPriceLevel      EntityCode = "price_level"
	EntityCompany         EntityCode = "company"
	EntityCustomer        EntityCode = "customer"
	EntityOrder           EntityCode = "order"
	EntityVariant         EntityCode = "variant"
	EntityInventoryUpdate EntityCode = "inventory_update"
	EntityOther           EntityCode = "other"
)

// Valid reports whether c is one of the known entity codes.
func (c EntityCode) Valid() bool {
	switch c {
	case EntityProduct, EntityPriceLevel, EntityCompany, EntityCustomer,
		EntityOrder, EntityVariant, EntityInventoryUpdate, EntityOther:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusError      MessageStatus = "error"
	StatusSuccess    MessageStatus = "success"
	StatusProcessing MessageStatus = "processing"
	// StatusTransferred marks outbound rows handed to the ERP by a pull.
	StatusTransferred MessageStatus = "transferred"
)

// DefaultERPCode is the source system tag used when a caller omits erpCode.
const DefaultERPCode = "laravel"

// InboundMessage is an ERP -> platform change request. Its payload lives in
// MessagePayload, one row per message.
type InboundMessage struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Shop         string        `json:"shop" gorm:"index"`
	EntityCode   EntityCode    `json:"entityCode" gorm:"not null;index"`
	TargetID     string        `json:"targetId" gorm:"not null"`
	ERPCode      string        `json:"erpCode" gorm:"not null;default:laravel"`
	VariantID    *string       `json:"variantId"`
	VariantTitle *string       `json:"variantTitle"`
	PlatformID   *string       `json:"shopifyId" gorm:"column:platform_id"`
	UpdateType   *string       `json:"updateType"`
	Status       MessageStatus `json:"status" gorm:"not null;default:pending;index"`
	Counter      string        `json:"counter" gorm:"not null;default:0"`
	UpdatedBy    *string       `json:"updatedBy"`
	CreatedAt    time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Attempts returns the counter as a number; unparsable values count as zero.
func (m *InboundMessage) Attempts() int {
	return parseCount(m.Counter)
}

// MessagePayload holds the original ERP body of an inbound message. It is
// written once, together with its message, and never updated.
type MessagePayload struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	MessageID uint           `json:"msgId" gorm:"not null;uniqueIndex"`
	Body      datatypes.JSON `json:"dataString" gorm:"not null"`
	CreatedAt time.Time      `json:"createdAt"`
}

// OutboundMessage records a platform-side change for the ERP to pull.
type OutboundMessage struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Shop         string        `json:"shop" gorm:"not null;index"`
	PlatformID   string        `json:"shopifyId" gorm:"column:platform_id;not null"`
	EntityCode   EntityCode    `json:"entityCode" gorm:"not null;index"`
	UpdateType   *string       `json:"updateType"`
	VariantID    *string       `json:"variantId"`
	VariantTitle *string       `json:"variantTitle"`
	Status       MessageStatus `json:"status" gorm:"not null;default:pending;index"`
	ERPCode      string        `json:"erpCode" gorm:"not null"`
	ERPID        *string       `json:"erpId" gorm:"column:erp_id"`
	Count        string        `json:"count" gorm:"not null;default:0"`
	UpdatedBy    *string       `json:"updatedBy"`
	CreatedAt    time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Attempts returns the count as a number; unparsable values count as zero.
func (m *OutboundMessage) Attempts() int {
	return parseCount(m.Count)
}

// ShopSession is the platform credential for one tenant.
type ShopSession struct {
	Shop        string    `json:"shop" gorm:"primaryKey"`
	AccessToken string    `json:"-" gorm:"not null"`
	Scope       string    `json:"scope"`
	InstalledAt time.Time `json:"installedAt"`
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
