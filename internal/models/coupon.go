package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type Coupon struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Code is stored upper-cased; NormalizeCouponCode before lookups.
	Code         string     `gorm:"uniqueIndex;size:64;not null" json:"code"`
	DiscountType string     `gorm:"size:20;not null" json:"discount_type"`
	// Value is a percentage when DiscountType is percentage (10 means 10%),
	// otherwise a fixed currency amount.
	Value     float64    `gorm:"type:decimal(10,2);not null" json:"value"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `gorm:"not null;default:true" json:"is_active"`
	// MaxUses is nil for unlimited coupons. UsesCount never exceeds it.
	MaxUses   *int64 `json:"max_uses"`
	UsesCount int64  `gorm:"not null;default:0" json:"uses_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Coupon) TableName() string {
	return "coupons"
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Exhausted reports whether the usage cap has been reached.
func (c *Coupon) Exhausted() bool {
	return c.MaxUses != nil && c.UsesCount >= *c.MaxUses
}
