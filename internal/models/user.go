package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	FullName     string `gorm:"size:255;not null" json:"full_name"`
	CPF          string `gorm:"uniqueIndex;size:14;not null" json:"cpf"`
	Phone        string `gorm:"size:20;not null" json:"phone"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	// Credits is the user's purchased balance; settlement is the only writer
	// after registration and never drives it negative.
	Credits int64 `gorm:"not null;default:0" json:"credits"`
	// AsaasCustomerID is reused on every new charge instead of re-registering
	// the customer with the gateway.
	AsaasCustomerID *string `gorm:"uniqueIndex;size:64" json:"-"`

	// Billing address, required for card charges (and for any order when
	// APP_REQUIRE_ADDRESS is set).
	PostalCode string `gorm:"size:9" json:"postal_code"`
	Street     string `gorm:"size:255" json:"street"`
	Number     string `gorm:"size:20" json:"number"`
	District   string `gorm:"size:120" json:"district"`
	City       string `gorm:"size:120" json:"city"`
	State      string `gorm:"size:2" json:"state"`
	Complement string `gorm:"size:255" json:"complement"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// HasBillingAddress reports whether the profile is complete enough for the
// gateway's card holder info.
func (u *User) HasBillingAddress() bool {
	return u.PostalCode != "" && u.Number != ""
}
