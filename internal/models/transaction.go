package models

import (
	"time"

	"gorm.io/gorm"
)

// Transaction settlement states. PENDING may move to CONFIRMED, CANCELLED or
// REFUNDED; CONFIRMED may still be clawed back to CANCELLED/REFUNDED.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
)

const (
	MethodPix  = "pix"
	MethodCard = "card"
)

// Transaction is one purchase order. It is created by the order orchestrator
// and mutated only by the reconciliation engine afterwards.
type Transaction struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	// OrderRef is our own id for the purchase, minted before the gateway is
	// called; it travels in the charge's external reference.
	OrderRef string `gorm:"uniqueIndex;size:64" json:"order_ref"`
	// AsaasPaymentID is the gateway's charge id; webhooks and polling key on it.
	AsaasPaymentID string  `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Description    string  `gorm:"size:255;not null" json:"description"`
	Quantity       int64   `gorm:"not null" json:"quantity"`
	UnitPrice      float64 `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalAmount    float64 `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Discount       float64 `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	CouponCode     *string `gorm:"size:64" json:"coupon_code"`
	// Value is the net amount actually charged.
	Value         float64    `gorm:"type:decimal(10,2);not null" json:"value"`
	Status        string     `gorm:"size:20;not null;index;default:'PENDING'" json:"status"`
	PaymentMethod string     `gorm:"size:10;not null" json:"payment_method"`
	PaidAt        *time.Time `json:"paid_at"`

	// Snapshot of the gateway's own view, mirrored on every webhook.
	AsaasStatus        *string    `gorm:"size:40" json:"-"`
	AsaasPaymentDate   *time.Time `json:"-"`
	AsaasConfirmedDate *time.Time `json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
