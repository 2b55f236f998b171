package handler

import (
	"net/http"
	"time"

	"creditshop/internal/repository"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	txnRepo *repository.TransactionRepository
}

func NewTransactionHandler(txnRepo *repository.TransactionRepository) *TransactionHandler {
	return &TransactionHandler{txnRepo: txnRepo}
}

type transactionView struct {
	ID            uint       `json:"id"`
	OrderRef      string     `json:"order_ref"`
	Description   string     `json:"description"`
	Quantity      int64      `json:"quantity"`
	UnitPrice     float64    `json:"unit_price"`
	TotalAmount   float64    `json:"total_amount"`
	Discount      float64    `json:"discount"`
	CouponCode    *string    `json:"coupon_code"`
	Value         float64    `json:"value"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	PaidAt        *time.Time `json:"paid_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UserName      string     `json:"user_name"`
	UserEmail     string     `json:"user_email"`
}

// List returns the full order history, newest first. Gateway snapshot fields
// stay internal.
func (h *TransactionHandler) List(c *gin.Context) {
	txns, err := h.txnRepo.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	views := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		views = append(views, transactionView{
			ID:            t.ID,
			OrderRef:      t.OrderRef,
			Description:   t.Description,
			Quantity:      t.Quantity,
			UnitPrice:     t.UnitPrice,
			TotalAmount:   t.TotalAmount,
			Discount:      t.Discount,
			CouponCode:    t.CouponCode,
			Value:         t.Value,
			Status:        t.Status,
			PaymentMethod: t.PaymentMethod,
			PaidAt:        t.PaidAt,
			CreatedAt:     t.CreatedAt,
			UserName:      t.User.FullName,
			UserEmail:     t.User.Email,
		})
	}
	c.JSON(http.StatusOK, views)
}
