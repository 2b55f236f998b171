package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"creditshop/config"
	"creditshop/internal/database"
	"creditshop/internal/models"
	"creditshop/pkg/asaas"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCouponInvalid   = errors.New("coupon invalid or expired")
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	ErrAddressRequired = errors.New("billing address required before purchase")
	// ErrGateway wraps fatal gateway failures; the whole local transaction is
	// rolled back when it surfaces.
	ErrGateway = errors.New("gateway charge failed")
)

type CardDetails struct {
	HolderName  string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CCV         string
}

type CreateOrderInput struct {
	Quantity      int64
	PaymentMethod string
	CouponCode    string
	Card          *CardDetails
}

type PixDetails struct {
	ImageSrc     string `json:"image_src"`
	CopyAndPaste string `json:"copy_and_paste"`
	ExpiresAt    string `json:"expires_at"`
}

type OrderResult struct {
	OrderRef       string      `json:"order_ref"`
	PaymentID      string      `json:"payment_id"`
	Status         string      `json:"status"`
	Value          float64     `json:"value"`
	Discount       float64     `json:"discount"`
	InvoiceURL     string      `json:"invoice_url"`
	PaidAt         *time.Time  `json:"paid_at"`
	UpdatedCredits *int64      `json:"updated_credits,omitempty"`
	Pix            *PixDetails `json:"pix,omitempty"`
}

// OrderService creates purchase orders: prices the quantity, applies a
// coupon under a row lock, provisions the gateway customer idempotently,
// creates the remote charge and persists the local transaction atomically.
type OrderService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewOrderService(db *gorm.DB, cfg *config.Config) *OrderService {
	return &OrderService{db: db, cfg: cfg}
}

var digitsOnly = regexp.MustCompile(`\D`)

// CreateOrder runs the whole orchestration inside one local transaction.
// If a local step fails after the remote charge was created, the charge is
// left standing at the gateway: the gateway is the source of truth for
// payment existence, and reconciliation converges the ledger later.
func (s *OrderService) CreateOrder(ctx context.Context, gw Gateway, userID uint, in CreateOrderInput) (*OrderResult, error) {
	var (
		result    OrderResult
		fetchPix  bool
		paymentID string
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		if s.cfg.Payment.RequireAddress && !user.HasBillingAddress() {
			return ErrAddressRequired
		}

		unitPrice := UnitPriceFor(in.Quantity)
		totalAmount := round2(unitPrice * float64(in.Quantity))
		description := fmt.Sprintf("Purchase of %d credits", in.Quantity)
		orderRef := fmt.Sprintf("cs-%s", uuid.New().String())

		finalValue := totalAmount
		var discountValue float64
		var appliedCoupon *models.Coupon

		if in.CouponCode != "" {
			var coupon models.Coupon
			err := database.LockForUpdate(tx).
				Where("code = ? AND is_active = ?", models.NormalizeCouponCode(in.CouponCode), true).
				Where("expires_at IS NULL OR expires_at > ?", time.Now()).
				First(&coupon).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrCouponInvalid
				}
				return err
			}
			if coupon.Exhausted() {
				return ErrCouponExhausted
			}
			appliedCoupon = &coupon
			if coupon.DiscountType == models.DiscountPercentage {
				discountValue = round2(finalValue * coupon.Value / 100)
			} else {
				discountValue = round2(coupon.Value)
			}
			finalValue = round2(finalValue - discountValue)
			if finalValue < s.cfg.Payment.MinCharge {
				finalValue = s.cfg.Payment.MinCharge
			}
		}

		// Reuse the stored gateway customer; register one only on first
		// purchase, and persist the reference before charging so a failed
		// order does not re-register next time.
		customerID := ""
		if user.AsaasCustomerID != nil {
			customerID = *user.AsaasCustomerID
		}
		if customerID == "" {
			id, err := gw.CreateCustomer(ctx, customerProfile(&user))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrGateway, err)
			}
			customerID = id
			user.AsaasCustomerID = &customerID
			if err := tx.Save(&user).Error; err != nil {
				return err
			}
		}

		couponCode := ""
		if appliedCoupon != nil {
			couponCode = appliedCoupon.Code
		}
		orderReq := asaas.PaymentRequest{
			Customer:    customerID,
			BillingType: billingType(in.PaymentMethod),
			DueDate:     time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
			Value:       finalValue,
			Description: description,
			ExternalReference: fmt.Sprintf("REF:%s|ENV:%s|USER:%d|QTY:%d|COUPON:%s",
				orderRef, gw.Env(), user.ID, in.Quantity, orDash(couponCode)),
		}
		if in.PaymentMethod == models.MethodCard && in.Card != nil {
			orderReq.CreditCard = &asaas.CreditCard{
				HolderName:  in.Card.HolderName,
				Number:      digitsOnly.ReplaceAllString(in.Card.Number, ""),
				ExpiryMonth: in.Card.ExpiryMonth,
				ExpiryYear:  in.Card.ExpiryYear,
				CCV:         in.Card.CCV,
			}
			orderReq.CreditCardHolderInfo = &asaas.CreditCardHolderInfo{
				Name:          user.FullName,
				Email:         user.Email,
				CPFCNPJ:       digitsOnly.ReplaceAllString(user.CPF, ""),
				PostalCode:    digitsOnly.ReplaceAllString(user.PostalCode, ""),
				AddressNumber: user.Number,
				MobilePhone:   lastDigits(user.Phone, 11),
			}
		}

		payment, err := gw.CreatePayment(ctx, orderReq)
		if err != nil {
			if !asaas.IsInvalidCustomer(err) {
				return fmt.Errorf("%w: %v", ErrGateway, err)
			}
			// Stale customer reference (e.g. after an environment switch):
			// re-register once, persist the new id, retry exactly once.
			log.Printf("[ASAAS] stale customer id for user %d (env=%s), re-registering", user.ID, gw.Env())
			newID, regErr := gw.CreateCustomer(ctx, customerProfile(&user))
			if regErr != nil {
				return fmt.Errorf("%w: %v", ErrGateway, regErr)
			}
			user.AsaasCustomerID = &newID
			if err := tx.Save(&user).Error; err != nil {
				return err
			}
			orderReq.Customer = newID
			payment, err = gw.CreatePayment(ctx, orderReq)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrGateway, err)
			}
		}

		settled := payment.Settled()
		var paidAt *time.Time
		if settled {
			paidAt = settlementTime(asaas.ParseDate(payment.ConfirmedDate), asaas.ParseDate(payment.PaymentDate))
		}

		txn := models.Transaction{
			UserID:             user.ID,
			OrderRef:           orderRef,
			AsaasPaymentID:     payment.ID,
			Description:        description,
			Quantity:           in.Quantity,
			UnitPrice:          unitPrice,
			TotalAmount:        totalAmount,
			Discount:           discountValue,
			Value:              finalValue,
			PaymentMethod:      in.PaymentMethod,
			Status:             models.StatusPending,
			PaidAt:             paidAt,
			AsaasStatus:        strPtr(payment.Status),
			AsaasPaymentDate:   asaas.ParseDate(payment.PaymentDate),
			AsaasConfirmedDate: asaas.ParseDate(payment.ConfirmedDate),
		}
		if settled {
			txn.Status = models.StatusConfirmed
		}
		if appliedCoupon != nil {
			txn.CouponCode = &appliedCoupon.Code
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		updatedCredits := user.Credits
		if settled {
			// Synchronous confirmation (some card charges settle inline):
			// grant credits and consume the coupon in the same transaction,
			// leaving the exact state the async paths would.
			if err := tx.Model(&user).UpdateColumn("credits", gorm.Expr("credits + ?", in.Quantity)).Error; err != nil {
				return err
			}
			if err := incrementCouponUses(tx, txn.CouponCode); err != nil {
				return err
			}
			updatedCredits += in.Quantity
		}

		result = OrderResult{
			OrderRef:   orderRef,
			PaymentID:  payment.ID,
			Status:     payment.Status,
			Value:      finalValue,
			Discount:   discountValue,
			InvoiceURL: payment.InvoiceURL,
			PaidAt:     paidAt,
		}
		if settled {
			result.UpdatedCredits = &updatedCredits
		}
		paymentID = payment.ID
		fetchPix = payment.BillingType == "PIX" && !settled
		if fetchPix && result.Pix == nil {
			result.Pix = &PixDetails{ExpiresAt: payment.DueDate}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// PIX details are best-effort: a QR fetch failure must not fail an order
	// that already exists at the gateway.
	if fetchPix {
		qr, err := gw.GetPixQrCode(ctx, paymentID)
		if err != nil {
			log.Printf("[ASAAS] pix qr fetch failed for %s: %v", paymentID, err)
			result.Pix = nil
		} else {
			expires := qr.ExpirationDate
			if expires == "" {
				expires = result.Pix.ExpiresAt
			}
			result.Pix = &PixDetails{
				ImageSrc:     "data:image/png;base64," + qr.EncodedImage,
				CopyAndPaste: qr.Payload,
				ExpiresAt:    expires,
			}
		}
	}
	return &result, nil
}

func customerProfile(u *models.User) asaas.CustomerProfile {
	return asaas.CustomerProfile{
		Name:          u.FullName,
		Email:         u.Email,
		CPFCNPJ:       digitsOnly.ReplaceAllString(u.CPF, ""),
		MobilePhone:   digitsOnly.ReplaceAllString(u.Phone, ""),
		Address:       u.Street,
		AddressNumber: u.Number,
		Complement:    u.Complement,
		Province:      u.District,
		PostalCode:    digitsOnly.ReplaceAllString(u.PostalCode, ""),
	}
}

func billingType(method string) string {
	if method == models.MethodPix {
		return "PIX"
	}
	return "CREDIT_CARD"
}

func lastDigits(v string, n int) string {
	d := digitsOnly.ReplaceAllString(v, "")
	if len(d) > n {
		return d[len(d)-n:]
	}
	return d
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
