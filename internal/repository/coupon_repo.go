package repository

import (
	"errors"
	"time"

	"creditshop/internal/models"

	"gorm.io/gorm"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// FindOrCreate creates the coupon unless one with the same normalized code
// already exists; returns whether a new row was created.
func (r *CouponRepository) FindOrCreate(c *models.Coupon) (bool, error) {
	c.Code = models.NormalizeCouponCode(c.Code)
	var existing models.Coupon
	err := r.db.Where("code = ?", c.Code).First(&existing).Error
	if err == nil {
		*c = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err := r.db.Create(c).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *CouponRepository) List() ([]models.Coupon, error) {
	var list []models.Coupon
	err := r.db.Order("created_at DESC").Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetActive returns the coupon only when it is active and not expired.
func (r *CouponRepository) GetActive(code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.
		Where("code = ? AND is_active = ?", models.NormalizeCouponCode(code), true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
