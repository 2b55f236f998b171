package repository

import (
	"creditshop/internal/models"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(t *models.Transaction) error {
	return r.db.Create(t).Error
}

func (r *TransactionRepository) GetByPaymentID(paymentID string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Where("asaas_payment_id = ?", paymentID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByPaymentIDForUser scopes the lookup to the owning user; polling is only
// allowed on the caller's own payments.
func (r *TransactionRepository) GetByPaymentIDForUser(paymentID string, userID uint) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.Where("asaas_payment_id = ? AND user_id = ?", paymentID, userID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListAll returns the full order history, newest first, with the owning user
// preloaded for the admin listing.
func (r *TransactionRepository) ListAll() ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Preload("User").Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *TransactionRepository) ListByUser(userID uint) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
