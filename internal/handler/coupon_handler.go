package handler

import (
	"errors"
	"net/http"
	"time"

	"creditshop/internal/models"
	"creditshop/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CouponHandler struct {
	couponRepo *repository.CouponRepository
}

func NewCouponHandler(couponRepo *repository.CouponRepository) *CouponHandler {
	return &CouponHandler{couponRepo: couponRepo}
}

type CreateCouponRequest struct {
	Code         string     `json:"code" binding:"required"`
	DiscountType string     `json:"discount_type" binding:"required,oneof=percentage fixed"`
	Value        float64    `json:"value" binding:"required,min=0"`
	ExpiresAt    *time.Time `json:"expires_at"`
	MaxUses      *int64     `json:"max_uses" binding:"omitempty,min=1"`
}

// Create is find-or-create: posting an existing code returns it instead of
// erroring on the unique index.
func (h *CouponHandler) Create(c *gin.Context) {
	var req CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coupon := models.Coupon{
		Code:         req.Code,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		ExpiresAt:    req.ExpiresAt,
		MaxUses:      req.MaxUses,
		IsActive:     true,
	}
	created, err := h.couponRepo.FindOrCreate(&coupon)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "coupon create failed"})
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"message": "coupon already exists", "coupon": coupon})
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *CouponHandler) List(c *gin.Context) {
	coupons, err := h.couponRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "coupon list failed"})
		return
	}
	c.JSON(http.StatusOK, coupons)
}

type ValidateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// Validate checks a code without consuming it. Consumption happens only at
// confirmation time.
func (h *CouponHandler) Validate(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	coupon, err := h.couponRepo.GetActive(req.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "coupon invalid or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "coupon lookup failed"})
		return
	}
	if coupon.Exhausted() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coupon usage limit reached"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"coupon": gin.H{
			"code":          coupon.Code,
			"discount_type": coupon.DiscountType,
			"value":         coupon.Value,
		},
	})
}
